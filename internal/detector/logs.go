// internal/detector/logs.go
package detector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

const (
	// LiquidityMarker precedes the vault disclosure emitted by the pool program on creation.
	LiquidityMarker = "Program log: liquidity"
	// BurnMarker accompanies the LP lock/burn step of the creation transaction.
	BurnMarker = "Program log: Instruction: Burn"
)

var (
	vault0Re = regexp.MustCompile(`vault_0_amount:\s*(\d+)`)
	vault1Re = regexp.MustCompile(`vault_1_amount:\s*(\d+)`)
)

// ParseLiquidityLog scans a log batch for both markers and the two vault amounts.
// ok is false for any batch that is not a pool creation; that is the common case.
func ParseLiquidityLog(logs []string) (snap domain.LiquiditySnapshot, ok bool) {
	var liquidity string
	var burn bool
	for _, line := range logs {
		if liquidity == "" && strings.Contains(line, LiquidityMarker) {
			liquidity = line
		}
		if !burn && strings.Contains(line, BurnMarker) {
			burn = true
		}
	}
	if liquidity == "" || !burn {
		return snap, false
	}

	v0, ok0 := parseField(vault0Re, liquidity)
	v1, ok1 := parseField(vault1Re, liquidity)
	if !ok0 || !ok1 {
		return snap, false
	}
	return domain.LiquiditySnapshot{Vault0: v0, Vault1: v1}, true
}

func parseField(re *regexp.Regexp, line string) (uint64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
