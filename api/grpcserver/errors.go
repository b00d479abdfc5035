package grpcserver

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	"forecast/domain/errs"
)

func codeFor(k errs.Kind) codes.Code {
	switch k {
	case errs.InvalidInput:
		return codes.InvalidArgument
	case errs.NotFound:
		return codes.NotFound
	case errs.MarketAlreadyExists:
		return codes.AlreadyExists
	case errs.InsufficientFunds,
		errs.InsufficientPosition,
		errs.MarketResolved,
		errs.AlreadyResolved,
		errs.PartialFillRejected:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// toStatus maps a core error to a gRPC status. The error kind and, where
// present, the needed and available amounts ride along as a Struct detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var e *errs.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(codeFor(e.Kind), e.Kind.String()+": "+e.Error())
	detail := map[string]any{"kind": e.Kind.String()}
	switch e.Kind {
	case errs.InsufficientFunds:
		detail["needed"] = e.Needed.StringFixed(2)
		detail["available"] = e.Available.StringFixed(2)
	case errs.InsufficientPosition, errs.PartialFillRejected:
		detail["needed"] = e.Needed.String()
		detail["available"] = e.Available.String()
	}
	msg, err := structpb.NewStruct(detail)
	if err != nil {
		return st.Err()
	}
	if withDetail, err := st.WithDetails(protoadapt.MessageV1Of(msg)); err == nil {
		st = withDetail
	}
	return st.Err()
}

// KindOf recovers the error kind from a status produced by this server.
func KindOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			return s.GetFields()["kind"].GetStringValue()
		}
	}
	return ""
}
