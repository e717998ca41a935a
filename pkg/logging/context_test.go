package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want []interface{}
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: []interface{}{},
		},
		{
			name: "delivery tag and domain",
			ctx:  WithDomain(WithDeliveryTag(context.Background(), 42), "example.org"),
			want: []interface{}{DeliveryTagKey, "42", DomainKey, "example.org"},
		},
		{
			name: "all fields",
			ctx: WithServiceName(
				WithDomain(WithDeliveryTag(WithTraceID(context.Background(), "abc"), 7), "a.b"),
				"poke-agent",
			),
			want: []interface{}{TraceIDKey, "abc", DeliveryTagKey, "7", DomainKey, "a.b", ServiceNameKey, "poke-agent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetLogFields(tt.ctx))
		})
	}
}

func TestGetDeliveryTag_Missing(t *testing.T) {
	_, ok := GetDeliveryTag(context.Background())
	assert.False(t, ok)
}

func TestEarlyLog(t *testing.T) {
	var out, errOut bytes.Buffer
	code := -1
	l := &EarlyLog{out: &out, err: &errOut, exit: func(c int) { code = c }}

	l.Info("loading %s", "config.yaml")
	l.Warn("no config file")
	l.Error("bad flag %q", "-x")
	assert.Equal(t, -1, code)

	l.Fatal("cannot start")
	assert.Equal(t, 1, code)

	assert.Equal(t, "INFO: loading config.yaml\n", out.String())
	assert.Equal(t, "WARN: no config file\nERROR: bad flag \"-x\"\nFATAL: cannot start\n", errOut.String())
}
