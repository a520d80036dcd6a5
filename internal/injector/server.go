package injector

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/keeperd/internal/approval"
	"github.com/kazz187/keeperd/internal/proof"
)

const (
	InjectorServiceName = "keeper.v1.InjectorService"

	InjectorServiceConnectProcedure                = "/" + InjectorServiceName + "/Connect"
	InjectorServiceGenerateSemaphoreProofProcedure = "/" + InjectorServiceName + "/GenerateSemaphoreProof"
	InjectorServiceGenerateRLNProofProcedure       = "/" + InjectorServiceName + "/GenerateRLNProof"
)

type ConnectRequest struct{}

// Server exposes Service to dApps over Connect. The caller's origin is the
// Origin header set by the browser.
type Server struct {
	svc *Service
}

func NewServer(svc *Service) *Server {
	return &Server{svc: svc}
}

func metadataOf(h http.Header) approval.Metadata {
	return approval.Metadata{URLOrigin: h.Get("Origin")}
}

func (s *Server) Connect(ctx context.Context, req *connect.Request[ConnectRequest]) (*connect.Response[ConnectResult], error) {
	res, err := s.svc.Connect(ctx, metadataOf(req.Header()))
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

func (s *Server) GenerateSemaphoreProof(ctx context.Context, req *connect.Request[proof.SemaphoreProofRequest]) (*connect.Response[proof.Response], error) {
	res, err := s.svc.GenerateSemaphoreProof(ctx, *req.Msg, metadataOf(req.Header()))
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

func (s *Server) GenerateRLNProof(ctx context.Context, req *connect.Request[proof.RLNProofRequest]) (*connect.Response[proof.Response], error) {
	res, err := s.svc.GenerateRLNProof(ctx, *req.Msg, metadataOf(req.Header()))
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

// NewInjectorServiceHandler builds an HTTP handler serving all injector
// procedures, to be mounted at the returned path.
func NewInjectorServiceHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	connectHandler := connect.NewUnaryHandler(InjectorServiceConnectProcedure, s.Connect, opts...)
	semaphoreHandler := connect.NewUnaryHandler(InjectorServiceGenerateSemaphoreProofProcedure, s.GenerateSemaphoreProof, opts...)
	rlnHandler := connect.NewUnaryHandler(InjectorServiceGenerateRLNProofProcedure, s.GenerateRLNProof, opts...)
	return "/" + InjectorServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case InjectorServiceConnectProcedure:
			connectHandler.ServeHTTP(w, r)
		case InjectorServiceGenerateSemaphoreProofProcedure:
			semaphoreHandler.ServeHTTP(w, r)
		case InjectorServiceGenerateRLNProofProcedure:
			rlnHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// InjectorClient calls an InjectorService over Connect.
type InjectorClient struct {
	connect   *connect.Client[ConnectRequest, ConnectResult]
	semaphore *connect.Client[proof.SemaphoreProofRequest, proof.Response]
	rln       *connect.Client[proof.RLNProofRequest, proof.Response]
}

func NewInjectorClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *InjectorClient {
	return &InjectorClient{
		connect:   connect.NewClient[ConnectRequest, ConnectResult](httpClient, baseURL+InjectorServiceConnectProcedure, opts...),
		semaphore: connect.NewClient[proof.SemaphoreProofRequest, proof.Response](httpClient, baseURL+InjectorServiceGenerateSemaphoreProofProcedure, opts...),
		rln:       connect.NewClient[proof.RLNProofRequest, proof.Response](httpClient, baseURL+InjectorServiceGenerateRLNProofProcedure, opts...),
	}
}

func (c *InjectorClient) Connect(ctx context.Context, req *connect.Request[ConnectRequest]) (*connect.Response[ConnectResult], error) {
	return c.connect.CallUnary(ctx, req)
}

func (c *InjectorClient) GenerateSemaphoreProof(ctx context.Context, req *connect.Request[proof.SemaphoreProofRequest]) (*connect.Response[proof.Response], error) {
	return c.semaphore.CallUnary(ctx, req)
}

func (c *InjectorClient) GenerateRLNProof(ctx context.Context, req *connect.Request[proof.RLNProofRequest]) (*connect.Response[proof.Response], error) {
	return c.rln.CallUnary(ctx, req)
}
