// Package api serves a read-mostly HTTP view of the hardware layer: the
// delegator registry, CPU topology, tuning state and kernel cache
// partitions, plus a gemv endpoint for smoke testing kernels remotely.
package api

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/kernelhal/internal/cpuinfo"
	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/delegator/gemv"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/tensor"
	"github.com/samcharles93/kernelhal/internal/threadpool"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

// Topology lists cores with their max frequencies.
type Topology interface {
	Cores() ([]cpuinfo.Core, error)
}

// DefaultMaxGemvOutput bounds the output elements of one POST /v1/gemv.
const DefaultMaxGemvOutput = 1 << 20

type Server struct {
	registry *delegator.Registry
	runtime  *tuning.Runtime
	topology Topology

	maxGemvOutput int
}

// Option configures a Server.
type Option func(*Server)

// WithMaxGemvOutput sets the largest batch*lhs_height a gemv request may
// produce. The multiply-add count is capped at 256 times that.
func WithMaxGemvOutput(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxGemvOutput = n
		}
	}
}

func NewServer(registry *delegator.Registry, rt *tuning.Runtime, topo Topology, opts ...Option) *Server {
	if registry == nil {
		registry = delegator.NewRegistry()
	}
	if rt == nil {
		rt = tuning.New()
	}
	if topo == nil {
		topo = cpuinfo.Default()
	}
	s := &Server{registry: registry, runtime: rt, topology: topo, maxGemvOutput: DefaultMaxGemvOutput}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/delegators", s.handleListDelegators)
	e.GET("/v1/cpu", s.handleCPU)
	e.GET("/v1/tuning", s.handleTuning)
	e.GET("/v1/caches", s.handleListCaches)
	e.GET("/v1/caches/:name", s.handleGetCache)
	e.POST("/v1/gemv", s.handleGemv)
}

func (s *Server) handleListDelegators(c *echo.Context) error {
	sigs := s.registry.Signatures()
	data := make([]DelegatorInfo, 0, len(sigs))
	for _, sig := range sigs {
		data = append(data, DelegatorInfo{
			Signature: sig.String(),
			Op:        sig.Op,
			Variant:   sig.Variant,
			Device:    sig.Device.String(),
			DType:     sig.DType.String(),
		})
	}
	return c.JSON(http.StatusOK, DelegatorList{Object: "list", Data: data})
}

func (s *Server) handleCPU(c *echo.Context) error {
	resp := CPUResponse{
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		Variant:    cpuinfo.Variant(),
		Features:   cpuinfo.Features(),
	}
	if cores, err := s.topology.Cores(); err == nil {
		for _, core := range cores {
			resp.Cores = append(resp.Cores, CoreInfo{ID: core.ID, MaxFreqKHz: core.MaxFreqKHz})
		}
	}
	big, little, err := s.runtime.GetBigLittleCoreIDs()
	if err != nil {
		resp.Error = err.Error()
	}
	resp.Big, resp.Little = nonNil(big), nonNil(little)
	if mask, err := threadpool.CurrentAffinity(); err == nil {
		resp.CurrentCPUMask = mask
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTuning(c *echo.Context) error {
	policy := s.runtime.ThreadPolicy()
	hints := s.runtime.GPUHints()
	resp := TuningResponse{
		Threads:     policy.NumThreads,
		Affinity:    policy.Policy.String(),
		CPUIDs:      policy.CPUIDs,
		GPUPerf:     hints.Perf.String(),
		GPUPriority: hints.Priority.String(),
	}
	switch f := s.runtime.KVStorageFactory().(type) {
	case nil:
	case *kvstorage.FileStorageFactory:
		resp.CacheKind = "file"
		resp.CacheRoot = f.Root()
	default:
		resp.CacheKind = fmt.Sprintf("%T", f)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) fileFactory() (*kvstorage.FileStorageFactory, bool) {
	f, ok := s.runtime.KVStorageFactory().(*kvstorage.FileStorageFactory)
	return f, ok
}

func (s *Server) handleListCaches(c *echo.Context) error {
	f, ok := s.fileFactory()
	if !ok {
		return writeNotFound(c, "no file-backed kernel cache configured")
	}
	names, err := f.Partitions()
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, CacheList{Object: "list", Root: f.Root(), Data: nonNilStrings(names)})
}

func (s *Server) handleGetCache(c *echo.Context) error {
	f, ok := s.fileFactory()
	if !ok {
		return writeNotFound(c, "no file-backed kernel cache configured")
	}
	name := c.Param("name")
	st, err := f.CreateStorage(name)
	if err != nil {
		return writeErr(c, err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Load(); err != nil {
		return writeErr(c, err)
	}
	part := st.(*kvstorage.FileStorage)
	if part.Len() == 0 && part.Generation() == uuid.Nil {
		return writeNotFound(c, fmt.Sprintf("cache partition %q not found", name))
	}

	resp := CachePartition{Name: name, Generation: part.Generation().String(), Entries: []CacheEntry{}}
	for _, key := range part.Keys() {
		v, _ := part.Find(key)
		resp.Entries = append(resp.Entries, CacheEntry{Key: key, Bytes: len(v)})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGemv(c *echo.Context) error {
	req, err := decodeJSON[GemvRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	dt := tensor.F32
	if req.DType != "" {
		if dt, err = tensor.ParseDType(req.DType); err != nil {
			return writeBadRequest(c, err.Error())
		}
	}
	sig := gemv.Signature(dt)
	if req.Variant != "" {
		sig.Variant = req.Variant
	}
	g, err := delegator.New[gemv.Gemv](s.registry, sig, delegator.RowMajor)
	if err != nil {
		return writeErr(c, err)
	}

	if err := req.checkLimits(s.maxGemvOutput); err != nil {
		return writeErr(c, err)
	}
	lhs, rhs, bias, err := req.tensors(dt)
	if err != nil {
		return writeErr(c, err)
	}
	out, err := tensor.New(dt)
	if err != nil {
		return writeErr(c, err)
	}
	if err := g.Compute(s.runtime.OpContext(), lhs, rhs, bias,
		req.Batch, req.LHSHeight, req.LHSWidth, req.LHSBatched, req.RHSBatched, out); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, GemvResponse{
		Signature: sig.String(),
		Shape:     out.Shape(),
		Output:    out.Float32s(),
	})
}

// checkLimits rejects requests whose output or multiply-add count would
// exceed the server limits, before anything is allocated.
func (r GemvRequest) checkLimits(limit int) error {
	if r.Batch < 1 || r.LHSHeight < 1 || r.LHSWidth < 1 {
		return newInvalidRequest("batch, lhs_height and lhs_width must be positive")
	}
	if r.LHSHeight > limit || r.Batch > limit/r.LHSHeight {
		return newInvalidRequest(fmt.Sprintf("batch*lhs_height exceeds the limit of %d output elements", limit))
	}
	work := maxGemvWidthFactor * limit
	if r.LHSWidth > work/(r.Batch*r.LHSHeight) {
		return newInvalidRequest(fmt.Sprintf("batch*lhs_height*lhs_width exceeds the limit of %d multiply-adds", work))
	}
	return nil
}

const maxGemvWidthFactor = 256

func (r GemvRequest) tensors(dt tensor.DType) (lhs, rhs, bias *tensor.Tensor, err error) {
	lhsShape := []int{r.LHSHeight, r.LHSWidth}
	if r.LHSBatched {
		lhsShape = []int{r.Batch, r.LHSHeight, r.LHSWidth}
	}
	rhsShape := []int{r.LHSWidth}
	if r.RHSBatched {
		rhsShape = []int{r.Batch, r.LHSWidth}
	}
	if lhs, err = tensor.FromFloat32(dt, r.LHS, lhsShape...); err != nil {
		return nil, nil, nil, fmt.Errorf("lhs: %w", err)
	}
	if rhs, err = tensor.FromFloat32(dt, r.RHS, rhsShape...); err != nil {
		return nil, nil, nil, fmt.Errorf("rhs: %w", err)
	}
	if r.Bias != nil {
		if bias, err = tensor.FromFloat32(dt, r.Bias, len(r.Bias)); err != nil {
			return nil, nil, nil, fmt.Errorf("bias: %w", err)
		}
	}
	return lhs, rhs, bias, nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
