package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

func consumer(channels ...*ir.Channel) *ir.ConsumerAnnotation {
	subs := make([]*ir.Subscription, 0, len(channels))
	for _, c := range channels {
		subs = append(subs, &ir.Subscription{Channel: c})
	}
	return &ir.ConsumerAnnotation{Subscriptions: subs}
}

func fixtureFunctions() []*ir.Function {
	orders := &ir.Channel{Name: "orders"}
	payments := &ir.Channel{Name: "payments"}
	// Same name, different instance: channels are keyed by name.
	ordersAgain := &ir.Channel{Name: "orders"}

	return []*ir.Function{
		{Name: "onOrder", Annotations: []ir.Annotation{consumer(orders)}},
		{Name: "audit", Annotations: []ir.Annotation{consumer(orders, payments), consumer(ordersAgain)}},
		{Name: "onPayment", Annotations: []ir.Annotation{consumer(payments)}},
		{Name: "publish", Annotations: []ir.Annotation{&ir.ProducerAnnotation{Channels: []*ir.Channel{orders}}}},
		{Name: "plain"},
	}
}

func TestExtract(t *testing.T) {
	top := Extract(fixtureFunctions())

	assert.Equal(t, []string{"orders", "payments"}, top.Topics.Sorted())
	assert.Equal(t, []string{"audit", "onOrder", "onPayment"}, top.FunctionsByMessage.Sorted())
	assert.Equal(t, []ChannelFunctions{
		{Channel: "orders", Functions: []string{"audit", "onOrder"}},
		{Channel: "payments", Functions: []string{"audit", "onPayment"}},
	}, top.FunctionsByChannel.Sorted())
	assert.False(t, top.Empty())
}

func TestExtractIsOrderIndependent(t *testing.T) {
	fns := fixtureFunctions()
	want := Extract(fns)

	permutations := [][]int{
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
		{1, 1, 0, 2, 3, 4, 2},
	}
	for _, perm := range permutations {
		shuffled := make([]*ir.Function, 0, len(perm))
		for _, i := range perm {
			shuffled = append(shuffled, fns[i])
		}
		got := Extract(shuffled)
		assert.Equal(t, want.Topics.Sorted(), got.Topics.Sorted())
		assert.Equal(t, want.FunctionsByMessage.Sorted(), got.FunctionsByMessage.Sorted())
		assert.Equal(t, want.FunctionsByChannel.Sorted(), got.FunctionsByChannel.Sorted())
	}
}

func TestExtractMissingSource(t *testing.T) {
	for name, top := range map[string]Topology{
		"nil functions":  Extract(nil),
		"nil api":        ExtractFromAPI(nil),
		"nil internal":   ExtractFromAPI(&ir.API{}),
		"nil entries":    Extract([]*ir.Function{nil}),
		"nil annotation": Extract([]*ir.Function{{Name: "f", Annotations: []ir.Annotation{(*ir.ConsumerAnnotation)(nil)}}}),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, top.Empty())
			assert.Equal(t, 0, top.FunctionsByMessage.Len())
			assert.Equal(t, 0, top.FunctionsByChannel.Len())
			assert.Empty(t, top.FunctionsByChannel.Sorted())
		})
	}
}

func TestProducers(t *testing.T) {
	idx := Producers(fixtureFunctions())
	require.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{"publish"}, idx.Functions("orders"))
	assert.Nil(t, idx.Functions("payments"))
}

func TestStringSet(t *testing.T) {
	s := NewStringSet()
	s.Add("b")
	s.Add("a")
	s.Add("b")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}
