package ir

// Model is the complete in-memory description handed to the generators.
// It owns every declaration as well as the model-wide message pool.
type Model struct {
	Name     string
	Decls    []Decl
	Messages []*Message
	Channels []*Channel
}

// Services returns the service declarations of the model in declaration order.
func (m *Model) Services() []*ServiceDecl {
	if m == nil {
		return nil
	}
	out := make([]*ServiceDecl, 0, len(m.Decls))
	for _, d := range m.Decls {
		if s, ok := d.(*ServiceDecl); ok {
			out = append(out, s)
		}
	}
	return out
}

// Service looks up a service declaration by name.
func (m *Model) Service(name string) (*ServiceDecl, bool) {
	for _, s := range m.Services() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Channel looks up a channel by name.
func (m *Model) Channel(name string) (*Channel, bool) {
	if m == nil {
		return nil, false
	}
	for _, c := range m.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Message represents an entry of the model-wide message pool shared by services
type Message struct {
	Name   string
	Fields []*Field
}

// Channel is a named messaging destination. Channels are identified by name.
type Channel struct {
	Name    string
	Message *Message
}

// Subscription references the channel a consumer listens on
type Subscription struct {
	Channel *Channel
}

// Annotation is messaging metadata attached to a function.
type Annotation interface {
	annotation()
}

// ConsumerAnnotation marks a function as subscribed to one or more channels
type ConsumerAnnotation struct {
	Subscriptions []*Subscription
}

// ProducerAnnotation marks a function as publishing to one or more channels
type ProducerAnnotation struct {
	Channels []*Channel
}

func (*ConsumerAnnotation) annotation() {}
func (*ProducerAnnotation) annotation() {}

// HTTP verbs understood by the generators
const (
	HTTPGet    = "GET"
	HTTPPost   = "POST"
	HTTPPut    = "PUT"
	HTTPPatch  = "PATCH"
	HTTPDelete = "DELETE"
)

// Param is a single named, typed function parameter
type Param struct {
	Name string
	Type TypeRef
}

// Function represents an API operation
type Function struct {
	Name        string
	Params      []*Param
	Returns     TypeRef
	HTTPVerb    string
	HTTPPath    string
	Annotations []Annotation
}

// IsWrite reports whether the function's verb creates or replaces a resource.
func (f *Function) IsWrite() bool {
	return f.HTTPVerb == HTTPPost || f.HTTPVerb == HTTPPut
}

// API is the surface a service exposes.
// Internal is nil when the service declares no internal functions.
type API struct {
	Typedefs  []*TypeDef
	Functions []*Function
	Internal  []*Function
}

// Dependency holds what a service uses from another service it calls
type Dependency struct {
	Service   string
	Typedefs  []*TypeDef
	Functions []*Function
}

// Deployment carries the deployment attributes of a service
type Deployment struct {
	Version  string
	URL      string
	Host     string
	Port     int
	Replicas int
}
