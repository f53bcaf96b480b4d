package samples

import (
	"context"
	"sort"
)

// Sample describes one runnable sample.
type Sample struct {
	// Name is the subcommand name, e.g. "basic-requestor".
	Name string

	// Short is a one-line description.
	Short string

	// ClientPrefix prefixes the generated client ID.
	ClientPrefix string

	// RequiresPassword marks samples that refuse to run without a password.
	RequiresPassword bool

	// Run executes the sample.
	Run func(ctx context.Context, r *Runner) error
}

var registry = map[string]Sample{
	"topic-publisher": {
		Name:         "topic-publisher",
		Short:        "Publish direct messages at QoS 0",
		ClientPrefix: "TopicPublisher",
		Run: func(ctx context.Context, r *Runner) error {
			_, err := r.TopicPublisher(ctx)
			return err
		},
	},
	"topic-subscriber": {
		Name:         "topic-subscriber",
		Short:        "Subscribe to direct messages at QoS 0",
		ClientPrefix: "TopicSubscriber",
		Run: func(ctx context.Context, r *Runner) error {
			_, err := r.TopicSubscriber(ctx, 0)
			return err
		},
	},
	"qos1-producer": {
		Name:             "qos1-producer",
		Short:            "Publish one message at QoS 1",
		ClientPrefix:     "QoS1Producer",
		RequiresPassword: true,
		Run: func(ctx context.Context, r *Runner) error {
			return r.QoS1Producer(ctx)
		},
	},
	"qos1-consumer": {
		Name:             "qos1-consumer",
		Short:            "Receive one message at QoS 1",
		ClientPrefix:     "QoS1Consumer",
		RequiresPassword: true,
		Run: func(ctx context.Context, r *Runner) error {
			_, err := r.QoS1Consumer(ctx)
			return err
		},
	},
	"confirmed-publish": {
		Name:             "confirmed-publish",
		Short:            "Publish at QoS 1 and wait for the delivery confirmation",
		ClientPrefix:     "ConfirmedPublish",
		RequiresPassword: true,
		Run: func(ctx context.Context, r *Runner) error {
			return r.ConfirmedPublish(ctx)
		},
	},
	"basic-requestor": {
		Name:             "basic-requestor",
		Short:            "Send one request and wait for the correlated reply",
		ClientPrefix:     "BasicRequestor",
		RequiresPassword: true,
		Run: func(ctx context.Context, r *Runner) error {
			_, err := r.BasicRequestor(ctx)
			return err
		},
	},
	"basic-replier": {
		Name:             "basic-replier",
		Short:            "Answer one request on the request topic",
		ClientPrefix:     "BasicReplier",
		RequiresPassword: true,
		Run: func(ctx context.Context, r *Runner) error {
			_, err := r.BasicReplier(ctx)
			return err
		},
	},
}

// All returns every sample sorted by name.
func All() []Sample {
	all := make([]Sample, 0, len(registry))
	for _, s := range registry {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Lookup returns the sample called name.
func Lookup(name string) (Sample, bool) {
	s, ok := registry[name]
	return s, ok
}
