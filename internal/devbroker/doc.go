// Package devbroker runs an embedded MQTT broker for local development
// and tests.
//
// The broker is a mochi-mqtt server with a single TCP listener that
// accepts every client. On top of plain MQTT it implements the reply-to
// convention the request/reply samples rely on: a client that subscribes
// to "$SYS/client/reply-to" is sent one message on that topic whose
// payload is its reply address, "<reply prefix>/<client ID>".
//
// # Usage
//
//	broker, err := devbroker.New(cfg.DevBroker, logger)
//	if err != nil {
//	    return err
//	}
//	if err := broker.Start(); err != nil {
//	    return err
//	}
//	defer broker.Close()
package devbroker
