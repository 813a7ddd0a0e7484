package kernel

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below matches exactly one of these
// through errors.Is.
var (
	ErrSilhouetteNotFound = errors.New("silhouette not found")
	ErrInvalidGeometry    = errors.New("invalid geometry")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrResourceLimit      = errors.New("resource limit exceeded")
	ErrGeometryOperation  = errors.New("geometry operation failed")
)

// StrategyAttempt records why one silhouette strategy was not accepted.
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// SilhouetteNotFoundError is returned when no extraction strategy produced
// a mask that passes the validity bounds.
type SilhouetteNotFoundError struct {
	Attempts []StrategyAttempt
}

func (e *SilhouetteNotFoundError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Strategy + ": " + a.Reason
	}
	return fmt.Sprintf("silhouette not found (%s)", strings.Join(parts, "; "))
}

func (e *SilhouetteNotFoundError) Is(target error) bool { return target == ErrSilhouetteNotFound }

// InvalidGeometryError reports a polygon or mesh that cannot be processed,
// e.g. a self-intersecting outline that survived the repair pass.
type InvalidGeometryError struct {
	Reason string
	Err    error
}

func (e *InvalidGeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid geometry: %s: %v", e.Reason, e.Err)
	}
	return "invalid geometry: " + e.Reason
}

func (e *InvalidGeometryError) Is(target error) bool { return target == ErrInvalidGeometry }
func (e *InvalidGeometryError) Unwrap() error        { return e.Err }

// InvalidParameterError names the input field that is out of range.
type InvalidParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// ResourceLimitError is raised before an allocation whose estimated size
// exceeds the configured budget.
type ResourceLimitError struct {
	Resource string
	Required int64
	Limit    int64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("resource limit exceeded: %s requires %d, limit is %d", e.Resource, e.Required, e.Limit)
}

func (e *ResourceLimitError) Is(target error) bool { return target == ErrResourceLimit }

// GeometryOperationError reports a numerical operation that failed after
// its single permitted fallback.
type GeometryOperationError struct {
	Op  string
	Err error
}

func (e *GeometryOperationError) Error() string {
	if e.Err == nil {
		return "geometry operation failed: " + e.Op
	}
	return fmt.Sprintf("geometry operation failed: %s: %v", e.Op, e.Err)
}

func (e *GeometryOperationError) Is(target error) bool { return target == ErrGeometryOperation }
func (e *GeometryOperationError) Unwrap() error        { return e.Err }

// DegenerateFaceWarning flags a face whose area collapsed during an edit.
// Warnings accompany a successful result; they are never returned as errors.
type DegenerateFaceWarning struct {
	Face int     `json:"face"`
	Area float64 `json:"area"`
}

func (w DegenerateFaceWarning) String() string {
	return fmt.Sprintf("face %d degenerated (area %.3g)", w.Face, w.Area)
}
