package handler

import (
	"context"

	"github.com/mossvale/stallworks/internal/adapter/handler/pb"
	"github.com/mossvale/stallworks/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedFulfillmentServer
	engine *service.Engine
}

func NewGRPCHandler(engine *service.Engine) *GRPCHandler {
	return &GRPCHandler{engine: engine}
}

func (h *GRPCHandler) Fulfill(ctx context.Context, req *pb.FulfillRequest) (*pb.FulfillResponse, error) {
	_, err := h.engine.Fulfill(ctx, req.GetFulfillmentId())
	if err != nil {
		_, kind, _ := errorPayload(err)
		return &pb.FulfillResponse{
			Success:   false,
			Message:   err.Error(),
			ErrorKind: kind,
		}, nil
	}

	return &pb.FulfillResponse{
		Success: true,
		Message: "fulfillment completed",
	}, nil
}
