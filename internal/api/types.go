package api

type ErrorBody struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
}

type DelegatorInfo struct {
	Signature string `json:"signature"`
	Op        string `json:"op"`
	Variant   string `json:"variant"`
	Device    string `json:"device"`
	DType     string `json:"dtype"`
}

type DelegatorList struct {
	Object string          `json:"object"`
	Data   []DelegatorInfo `json:"data"`
}

type CoreInfo struct {
	ID         int    `json:"id"`
	MaxFreqKHz uint64 `json:"max_freq_khz"`
}

type CPUResponse struct {
	Cores          []CoreInfo      `json:"cores,omitempty"`
	Big            []int           `json:"big"`
	Little         []int           `json:"little"`
	Error          string          `json:"error,omitempty"`
	GOMAXPROCS     int             `json:"gomaxprocs"`
	Variant        string          `json:"variant,omitempty"`
	Features       map[string]bool `json:"features"`
	CurrentCPUMask []int           `json:"current_cpu_mask,omitempty"`
}

type TuningResponse struct {
	Threads     int    `json:"threads"`
	Affinity    string `json:"affinity"`
	CPUIDs      []int  `json:"cpu_ids,omitempty"`
	GPUPerf     string `json:"gpu_perf"`
	GPUPriority string `json:"gpu_priority"`
	CacheRoot   string `json:"cache_root,omitempty"`
	CacheKind   string `json:"cache_kind,omitempty"`
}

type CacheEntry struct {
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
}

type CacheList struct {
	Object string   `json:"object"`
	Root   string   `json:"root"`
	Data   []string `json:"data"`
}

type CachePartition struct {
	Name       string       `json:"name"`
	Generation string       `json:"generation,omitempty"`
	Entries    []CacheEntry `json:"entries"`
}

type GemvRequest struct {
	Variant    string    `json:"variant,omitempty"`
	DType      string    `json:"dtype,omitempty"`
	Batch      int       `json:"batch"`
	LHSHeight  int       `json:"lhs_height"`
	LHSWidth   int       `json:"lhs_width"`
	LHSBatched bool      `json:"lhs_batched"`
	RHSBatched bool      `json:"rhs_batched"`
	LHS        []float32 `json:"lhs"`
	RHS        []float32 `json:"rhs"`
	Bias       []float32 `json:"bias,omitempty"`
}

type GemvResponse struct {
	Signature string    `json:"signature"`
	Shape     []int     `json:"shape"`
	Output    []float32 `json:"output"`
}
