package eventbus

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	EventServiceName               = "keeper.v1.EventService"
	EventServiceSubscribeProcedure = "/" + EventServiceName + "/Subscribe"
)

// SubscribeRequest selects the event types to stream. Empty means all.
type SubscribeRequest struct {
	EventTypes []EventType `json:"eventTypes,omitempty" cbor:"event_types,omitempty"`
}

type Server struct {
	eventBus *Bus
}

func NewServer(eventBus *Bus) *Server {
	return &Server{eventBus: eventBus}
}

func (s *Server) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest], stream *connect.ServerStream[Event]) error {
	subID, ch := s.eventBus.Subscribe(64)
	defer s.eventBus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if !Filter(event, req.Msg.EventTypes) {
				continue
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}

func NewEventServiceHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	return EventServiceSubscribeProcedure, connect.NewServerStreamHandler(EventServiceSubscribeProcedure, s.Subscribe, opts...)
}

type EventClient struct {
	subscribe *connect.Client[SubscribeRequest, Event]
}

func NewEventClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *EventClient {
	return &EventClient{
		subscribe: connect.NewClient[SubscribeRequest, Event](httpClient, baseURL+EventServiceSubscribeProcedure, opts...),
	}
}

func (c *EventClient) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.ServerStreamForClient[Event], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
