// Package messaging derives topic and subscription bindings from the
// consumer annotations of a service's functions.
//
// All collections are sets: feeding the same functions in any order yields
// the same topology, and no topic or function-per-channel entry repeats.
package messaging

import (
	"sort"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

// StringSet is an insertion-checked set of strings with a sorted view.
type StringSet struct {
	m map[string]struct{}
}

// NewStringSet returns an empty set.
func NewStringSet() *StringSet {
	return &StringSet{m: map[string]struct{}{}}
}

// Add inserts s; adding an existing member is a no-op.
func (s *StringSet) Add(v string) {
	s.m[v] = struct{}{}
}

// Has reports membership.
func (s *StringSet) Has(v string) bool {
	_, ok := s.m[v]
	return ok
}

// Len returns the number of members.
func (s *StringSet) Len() int {
	return len(s.m)
}

// Sorted returns the members in ascending order.
func (s *StringSet) Sorted() []string {
	out := make([]string, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ChannelIndex maps a channel name to the set of functions subscribed to it.
type ChannelIndex struct {
	m map[string]*StringSet
}

// NewChannelIndex returns an empty index.
func NewChannelIndex() *ChannelIndex {
	return &ChannelIndex{m: map[string]*StringSet{}}
}

// Add records fn under channel, unioning with earlier entries.
func (c *ChannelIndex) Add(channel, fn string) {
	set, ok := c.m[channel]
	if !ok {
		set = NewStringSet()
		c.m[channel] = set
	}
	set.Add(fn)
}

// Functions returns the sorted function names subscribed to channel.
func (c *ChannelIndex) Functions(channel string) []string {
	set, ok := c.m[channel]
	if !ok {
		return nil
	}
	return set.Sorted()
}

// Len returns the number of channels.
func (c *ChannelIndex) Len() int {
	return len(c.m)
}

// ChannelFunctions is one entry of the sorted view of a ChannelIndex
type ChannelFunctions struct {
	Channel   string
	Functions []string
}

// Sorted returns the channels in ascending order, each with its sorted functions.
func (c *ChannelIndex) Sorted() []ChannelFunctions {
	names := make([]string, 0, len(c.m))
	for name := range c.m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ChannelFunctions, 0, len(names))
	for _, name := range names {
		out = append(out, ChannelFunctions{Channel: name, Functions: c.m[name].Sorted()})
	}
	return out
}

// Topology is the messaging view of a set of functions
type Topology struct {
	Topics             *StringSet
	FunctionsByMessage *StringSet
	FunctionsByChannel *ChannelIndex
}

// Empty reports whether no consumer was found.
func (t Topology) Empty() bool {
	return t.Topics.Len() == 0
}

// Extract walks the consumer annotations of fns. Functions without a
// consumer annotation contribute nothing; a nil slice gives an empty topology.
func Extract(fns []*ir.Function) Topology {
	t := Topology{
		Topics:             NewStringSet(),
		FunctionsByMessage: NewStringSet(),
		FunctionsByChannel: NewChannelIndex(),
	}
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		for _, a := range fn.Annotations {
			consumer, ok := a.(*ir.ConsumerAnnotation)
			if !ok || consumer == nil {
				continue
			}
			for _, sub := range consumer.Subscriptions {
				if sub == nil || sub.Channel == nil {
					continue
				}
				t.Topics.Add(sub.Channel.Name)
				t.FunctionsByMessage.Add(fn.Name)
				t.FunctionsByChannel.Add(sub.Channel.Name, fn.Name)
			}
		}
	}
	return t
}

// ExtractFromAPI runs Extract over the internal functions of api.
// A missing API or internal function collection degrades to an empty topology.
func ExtractFromAPI(api *ir.API) Topology {
	if api == nil {
		return Extract(nil)
	}
	return Extract(api.Internal)
}

// Producers indexes the channels each function publishes to.
func Producers(fns []*ir.Function) *ChannelIndex {
	idx := NewChannelIndex()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		for _, a := range fn.Annotations {
			producer, ok := a.(*ir.ProducerAnnotation)
			if !ok || producer == nil {
				continue
			}
			for _, ch := range producer.Channels {
				if ch != nil {
					idx.Add(ch.Name, fn.Name)
				}
			}
		}
	}
	return idx
}
