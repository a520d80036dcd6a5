package injector

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/proof"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/codec"
)

func newTestClient(t *testing.T, f *fixture, clientCodec connect.Codec) *InjectorClient {
	t.Helper()
	opts := append(codec.ConnectHandlerOptions(), connect.WithInterceptors(cerr.NewConvertConnectErrorInterceptor()))
	path, handler := NewInjectorServiceHandler(NewServer(f.svc), opts...)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewInjectorClient(srv.Client(), srv.URL, connect.WithCodec(clientCodec))
}

func withOrigin[T any](msg *T, o string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if o != "" {
		req.Header().Set("Origin", o)
	}
	return req
}

func TestServer_Connect(t *testing.T) {
	for _, c := range []connect.Codec{codec.ConnectJSON{}, codec.ConnectCBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			f := newFixture(t)
			f.approvals.records[origin] = approval.Record{URLOrigin: origin, CanSkipApprove: true}
			client := newTestClient(t, f, c)

			res, err := client.Connect(t.Context(), withOrigin(&ConnectRequest{}, origin))
			require.NoError(t, err)
			assert.Equal(t, ConnectResult{IsApproved: true, CanSkipApprove: true}, *res.Msg)
		})
	}
}

func TestServer_ConnectWithoutOrigin(t *testing.T) {
	client := newTestClient(t, newFixture(t), codec.ConnectJSON{})

	_, err := client.Connect(t.Context(), withOrigin(&ConnectRequest{}, ""))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestServer_GenerateSemaphoreProof(t *testing.T) {
	f := newFixture(t)
	f.approvals.records[origin] = approval.Record{URLOrigin: origin, CanSkipApprove: true}
	client := newTestClient(t, f, codec.ConnectJSON{})

	res, err := client.GenerateSemaphoreProof(t.Context(), withOrigin(&proof.SemaphoreProofRequest{
		ExternalNullifier: "1",
		Signal:            "hello",
	}, origin))
	require.NoError(t, err)
	assert.Equal(t, proof.KindSemaphore, res.Msg.Kind)
	assert.Equal(t, true, res.Msg.FullProof.Proof["ok"])

	require.Len(t, f.delegate.got, 1)
	assert.Equal(t, origin, f.delegate.got[0].Semaphore.URLOrigin)
}

func TestServer_GenerateRLNProofNotApproved(t *testing.T) {
	client := newTestClient(t, newFixture(t), codec.ConnectCBOR{})

	_, err := client.GenerateRLNProof(t.Context(), withOrigin(&proof.RLNProofRequest{
		RLNIdentifier: "1",
		Message:       "hi",
		Epoch:         "1",
		MessageLimit:  1,
	}, origin))
	require.Error(t, err)
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	assert.Contains(t, err.Error(), origin+" is not approved")
}
