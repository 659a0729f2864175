package calc

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
)

// Variables maps a user-assigned symbol to its previously computed value.
// The pipeline only reads it.
type Variables map[string]any

// Record is one answer unit extracted from the model reply.
type Record struct {
	Expr   string `json:"expr"`
	Result any    `json:"result"`
	Assign bool   `json:"assign"`
}

// Batch keeps records in the order the model emitted them.
type Batch []Record

type Status string

const StatusOK Status = "ok"

// Request is one pipeline invocation. Image is base64 text, either bare or
// wrapped in a data URL.
type Request struct {
	Image     string
	Variables Variables
}

type Response struct {
	Status   Status
	Records  Batch
	Image    string
	Degraded bool
}

// Image is the inline attachment handed to the completion service.
type Image struct {
	Data     []byte
	MIMEType string
}

// Completer is a vision-capable text completion service.
type Completer interface {
	Name() string
	GetModel() string
	Complete(ctx context.Context, prompt string, img Image) (string, error)
}

// Assignments returns the bindings a caller should fold into its variables
// before the next request.
func (b Batch) Assignments() Variables {
	out := Variables{}
	for _, r := range b {
		if r.Assign {
			out[r.Expr] = r.Result
		}
	}
	return out
}

// ScalarFromText turns user-typed text into a variable value. Text that is a
// finite JSON number becomes json.Number; anything else stays a string.
func ScalarFromText(raw string) any {
	if !json.Valid([]byte(raw)) {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return raw
	}
	return json.Number(raw)
}
