// Package quota decides whether an upload fits in the container.
package quota

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultUnit is the unit applied to a bare container limit. Decimal: one GB
// is 1000^3 bytes.
const DefaultUnit = "GB"

// Decision is the outcome of an admission check.
type Decision struct {
	// Admitted is true when the upload fits.
	Admitted bool

	// Used is the container usage the decision was based on.
	Used uint64

	// Incoming is the declared upload size.
	Incoming uint64

	// Limit is the container capacity in bytes.
	Limit uint64
}

// Remaining returns how many bytes are still free before this upload.
func (d Decision) Remaining() uint64 {
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}

// Admit rejects an upload iff used + incoming > limit. Landing exactly on the
// limit is admitted. The sum is evaluated without overflow.
func Admit(used, incoming, limit uint64) Decision {
	return Decision{
		Admitted: used <= limit && incoming <= limit-used,
		Used:     used,
		Incoming: incoming,
		Limit:    limit,
	}
}

// Policy is a container size limit in bytes.
type Policy struct {
	LimitBytes uint64
}

// NewPolicy builds a policy of limit units. unit is any size suffix
// go-humanize understands ("B", "KB", "MiB", "GB", ...); empty means
// DefaultUnit.
//
// Example:
//
//	p, _ := quota.NewPolicy(5, "")    // 5 * 1000^3 bytes
//	p, _ := quota.NewPolicy(5, "GiB") // 5 * 1024^3 bytes
func NewPolicy(limit uint64, unit string) (Policy, error) {
	unitBytes, err := UnitBytes(unit)
	if err != nil {
		return Policy{}, err
	}

	if unitBytes != 0 && limit > math.MaxUint64/unitBytes {
		return Policy{}, fmt.Errorf("container limit %d %s overflows", limit, unit)
	}

	return Policy{LimitBytes: limit * unitBytes}, nil
}

// UnitBytes returns the size in bytes of one unit.
func UnitBytes(unit string) (uint64, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = DefaultUnit
	}

	n, err := humanize.ParseBytes("1 " + unit)
	if err != nil {
		return 0, fmt.Errorf("invalid quota unit %q: %w", unit, err)
	}
	return n, nil
}

// Admit checks an upload of incoming bytes against the policy.
func (p Policy) Admit(used, incoming uint64) Decision {
	return Admit(used, incoming, p.LimitBytes)
}

// String renders the limit for logs, e.g. "5.0 GB".
func (p Policy) String() string {
	return humanize.Bytes(p.LimitBytes)
}
