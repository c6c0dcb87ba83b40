package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/chazu/scmvm/vm"
)

// InspectServiceName is the fully-qualified name of the inspection service.
const InspectServiceName = "scmvm.v1.InspectService"

// Procedure paths served by the inspection service.
const (
	ListThreadsProcedure = "/" + InspectServiceName + "/ListThreads"
	ReadGlobalProcedure  = "/" + InspectServiceName + "/ReadGlobal"
	ReadLocalProcedure   = "/" + InspectServiceName + "/ReadLocal"
	SnapshotProcedure    = "/" + InspectServiceName + "/Snapshot"
)

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type ListThreadsRequest struct {
	// NamePrefix limits the listing to threads whose name starts with it.
	NamePrefix string `cbor:"1,keyasint,omitempty"`
}

type ListThreadsResponse struct {
	Threads []ThreadInfo `cbor:"1,keyasint,omitempty"`
	Ticks   uint64       `cbor:"2,keyasint"`
	Elapsed uint64       `cbor:"3,keyasint"`
}

// ThreadInfo is the externally visible state of one thread.
type ThreadInfo struct {
	ID             uint64 `cbor:"1,keyasint"`
	Name           string `cbor:"2,keyasint"`
	State          string `cbor:"3,keyasint"`
	ProgramCounter uint32 `cbor:"4,keyasint"`
	BaseAddress    uint32 `cbor:"5,keyasint"`
	WakeCounter    int32  `cbor:"6,keyasint"`
	StackDepth     int    `cbor:"7,keyasint"`
	IsMission      bool   `cbor:"8,keyasint"`
}

type ReadGlobalRequest struct {
	Index uint32 `cbor:"1,keyasint"`
	// Count is the number of consecutive slots to read; zero reads one.
	Count uint32 `cbor:"2,keyasint,omitempty"`
}

type ReadGlobalResponse struct {
	Values []int32 `cbor:"1,keyasint"`
}

type ReadLocalRequest struct {
	Thread uint64 `cbor:"1,keyasint"`
	Index  uint32 `cbor:"2,keyasint"`
}

type ReadLocalResponse struct {
	Value int32 `cbor:"1,keyasint"`
}

type SnapshotRequest struct{}

type SnapshotResponse struct {
	Snapshot *vm.Snapshot `cbor:"1,keyasint"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// InspectService answers read-only queries about a running machine.
type InspectService struct {
	worker *Worker
}

// NewInspectService creates an InspectService.
func NewInspectService(worker *Worker) *InspectService {
	return &InspectService{worker: worker}
}

// ListThreads returns every live thread in creation order.
func (s *InspectService) ListThreads(
	ctx context.Context,
	req *connect.Request[ListThreadsRequest],
) (*connect.Response[ListThreadsResponse], error) {
	result, err := s.worker.Do(ctx, func(m *vm.Machine) (any, error) {
		resp := &ListThreadsResponse{Ticks: m.Ticks(), Elapsed: m.Elapsed()}
		for _, t := range m.Threads() {
			if !strings.HasPrefix(t.Name, req.Msg.NamePrefix) {
				continue
			}
			resp.Threads = append(resp.Threads, threadInfo(t))
		}
		return resp, nil
	})
	if err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(result.(*ListThreadsResponse)), nil
}

func threadInfo(t *vm.Thread) ThreadInfo {
	return ThreadInfo{
		ID:             t.ID,
		Name:           t.Name,
		State:          t.State().String(),
		ProgramCounter: t.ProgramCounter,
		BaseAddress:    t.BaseAddress,
		WakeCounter:    t.WakeCounter,
		StackDepth:     t.StackDepth,
		IsMission:      t.IsMission,
	}
}

// ReadGlobal reads one or more consecutive global slots as integers.
func (s *InspectService) ReadGlobal(
	ctx context.Context,
	req *connect.Request[ReadGlobalRequest],
) (*connect.Response[ReadGlobalResponse], error) {
	count := max(req.Msg.Count, 1)
	limit := uint64(s.worker.Machine().File().GlobalsSize() / vm.VariableSize)
	if uint64(req.Msg.Index)+uint64(count) > limit {
		return nil, connect.NewError(connect.CodeOutOfRange,
			fmt.Errorf("globals %d..%d outside %d slots", req.Msg.Index, uint64(req.Msg.Index)+uint64(count)-1, limit))
	}

	result, err := s.worker.Do(ctx, func(m *vm.Machine) (any, error) {
		values := make([]int32, count)
		for i := range values {
			values[i] = m.Global(req.Msg.Index + uint32(i))
		}
		return values, nil
	})
	if err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(&ReadGlobalResponse{Values: result.([]int32)}), nil
}

// ReadLocal reads one local slot of a thread as an integer.
func (s *InspectService) ReadLocal(
	ctx context.Context,
	req *connect.Request[ReadLocalRequest],
) (*connect.Response[ReadLocalResponse], error) {
	if req.Msg.Index >= vm.LocalSlots {
		return nil, connect.NewError(connect.CodeOutOfRange,
			fmt.Errorf("local %d outside %d slots", req.Msg.Index, vm.LocalSlots))
	}

	result, err := s.worker.Do(ctx, func(m *vm.Machine) (any, error) {
		t, ok := m.Thread(req.Msg.Thread)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("thread %d not found", req.Msg.Thread))
		}
		return t.Local(int(req.Msg.Index)), nil
	})
	if err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(&ReadLocalResponse{Value: result.(int32)}), nil
}

// Snapshot captures the complete machine state between ticks.
func (s *InspectService) Snapshot(
	ctx context.Context,
	req *connect.Request[SnapshotRequest],
) (*connect.Response[SnapshotResponse], error) {
	snap, err := s.worker.Snapshot(ctx)
	if err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(&SnapshotResponse{Snapshot: snap}), nil
}

// workerError maps a worker failure onto a connect error, keeping errors
// that already carry a code.
func workerError(err error) error {
	var ce *connect.Error
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewInspectHandler builds an HTTP handler serving svc. It returns the path
// prefix to mount it on.
func NewInspectHandler(svc *InspectService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(cborCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListThreadsProcedure, connect.NewUnaryHandler(ListThreadsProcedure, svc.ListThreads, opts...))
	mux.Handle(ReadGlobalProcedure, connect.NewUnaryHandler(ReadGlobalProcedure, svc.ReadGlobal, opts...))
	mux.Handle(ReadLocalProcedure, connect.NewUnaryHandler(ReadLocalProcedure, svc.ReadLocal, opts...))
	mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, opts...))
	return "/" + InspectServiceName + "/", mux
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// InspectClient calls a remote inspection service.
type InspectClient struct {
	listThreads *connect.Client[ListThreadsRequest, ListThreadsResponse]
	readGlobal  *connect.Client[ReadGlobalRequest, ReadGlobalResponse]
	readLocal   *connect.Client[ReadLocalRequest, ReadLocalResponse]
	snapshot    *connect.Client[SnapshotRequest, SnapshotResponse]
}

// NewInspectClient creates a client for the service at baseURL.
func NewInspectClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *InspectClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(cborCodec{})}, opts...)
	return &InspectClient{
		listThreads: connect.NewClient[ListThreadsRequest, ListThreadsResponse](httpClient, baseURL+ListThreadsProcedure, opts...),
		readGlobal:  connect.NewClient[ReadGlobalRequest, ReadGlobalResponse](httpClient, baseURL+ReadGlobalProcedure, opts...),
		readLocal:   connect.NewClient[ReadLocalRequest, ReadLocalResponse](httpClient, baseURL+ReadLocalProcedure, opts...),
		snapshot:    connect.NewClient[SnapshotRequest, SnapshotResponse](httpClient, baseURL+SnapshotProcedure, opts...),
	}
}

// ListThreads calls InspectService.ListThreads.
func (c *InspectClient) ListThreads(ctx context.Context, req *ListThreadsRequest) (*ListThreadsResponse, error) {
	resp, err := c.listThreads.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ReadGlobal calls InspectService.ReadGlobal.
func (c *InspectClient) ReadGlobal(ctx context.Context, req *ReadGlobalRequest) (*ReadGlobalResponse, error) {
	resp, err := c.readGlobal.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ReadLocal calls InspectService.ReadLocal.
func (c *InspectClient) ReadLocal(ctx context.Context, req *ReadLocalRequest) (*ReadLocalResponse, error) {
	resp, err := c.readLocal.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Snapshot calls InspectService.Snapshot.
func (c *InspectClient) Snapshot(ctx context.Context) (*vm.Snapshot, error) {
	resp, err := c.snapshot.CallUnary(ctx, connect.NewRequest(&SnapshotRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Snapshot, nil
}
