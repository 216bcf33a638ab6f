package ilo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stmcginnis/gofish/common"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "unauthorized",
			err:  &common.Error{HTTPReturnedStatusCode: 401},
			want: KindAuth,
		},
		{
			name: "forbidden",
			err:  fmt.Errorf("get systems: %w", &common.Error{HTTPReturnedStatusCode: 403}),
			want: KindAuth,
		},
		{
			name: "server error",
			err:  &common.Error{HTTPReturnedStatusCode: 500},
			want: KindCommunication,
		},
		{
			name: "dns",
			err:  &net.DNSError{Err: "no such host", Name: "ilo.invalid"},
			want: KindNetwork,
		},
		{
			name: "dial",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			want: KindNetwork,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("request: %w", context.DeadlineExceeded),
			want: KindNetwork,
		},
		{
			name: "flattened unauthorized",
			err:  errors.New("401: Unauthorized"),
			want: KindAuth,
		},
		{
			name: "flattened forbidden behind wrap",
			err:  errors.New("get systems: 403: {\"error\":{}}"),
			want: KindAuth,
		},
		{
			name: "401 inside a path",
			err:  errors.New("GET /redfish/v1/Systems/401: invalid character '<'"),
			want: KindCommunication,
		},
		{
			name: "401 inside a port",
			err:  errors.New("unexpected response from ilo:4401"),
			want: KindCommunication,
		},
		{
			name: "unauthorized word without status",
			err:  errors.New("resource reports Unauthorized access attempts"),
			want: KindCommunication,
		},
		{
			name: "garbage payload",
			err:  errors.New("invalid character '<' looking for beginning of value"),
			want: KindCommunication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("connect", tt.err)

			kind, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify("connect", nil))
}

func TestClassify_KeepsExistingKind(t *testing.T) {
	orig := &Error{Kind: KindAuth, Op: "connect", Err: errors.New("nope")}
	err := classify("systems", orig)

	assert.Same(t, orig, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "communication", KindCommunication.String())
}
