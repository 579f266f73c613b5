package core

// OrderType sorts query results by document type.
const OrderType = "type"

type options struct {
	links []string
	keys  []string
	order string
}

// Option configures a single db operation.
type Option func(*options)

// WithLinks sets the versions superseded by a put instead of the current heads.
func WithLinks(links ...string) Option {
	return func(o *options) {
		o.links = links
	}
}

// WithKeys selects the head versions removed by a delete instead of all heads.
func WithKeys(keys ...string) Option {
	return func(o *options) {
		o.keys = keys
	}
}

// WithOrder sets the order of query results.
func WithOrder(order string) Option {
	return func(o *options) {
		o.order = order
	}
}

// OrderByType returns nodes before ways and ways before relations.
func OrderByType() Option {
	return WithOrder(OrderType)
}

func applyOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
