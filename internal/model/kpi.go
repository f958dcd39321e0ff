package model

import (
	"sort"
	"strings"
)

// KPI identifies one of the supported technical indicators.
type KPI string

const (
	KPIRSI    KPI = "RSI"
	KPIEMA7   KPI = "EMA_7"
	KPIEMA30  KPI = "EMA_30"
	KPIEMA60  KPI = "EMA_60"
	KPIEMA200 KPI = "EMA_200"
)

// RSIPeriod is the default RSI lookback.
const RSIPeriod = 14

// AllKPIs lists every supported indicator in canonical order.
var AllKPIs = []KPI{KPIRSI, KPIEMA7, KPIEMA30, KPIEMA60, KPIEMA200}

var kpiWindows = map[KPI]int{
	KPIRSI:    RSIPeriod,
	KPIEMA7:   7,
	KPIEMA30:  30,
	KPIEMA60:  60,
	KPIEMA200: 200,
}

// Window returns the lookback of k, or 0 if k is unknown.
func (k KPI) Window() int { return kpiWindows[k] }

// Valid reports whether k is part of the enumeration.
func (k KPI) Valid() bool {
	_, ok := kpiWindows[k]
	return ok
}

// IsEMA reports whether k is one of the EMA windows.
func (k KPI) IsEMA() bool { return k.Valid() && k != KPIRSI }

func (k KPI) rank() int {
	for i, v := range AllKPIs {
		if v == k {
			return i
		}
	}
	return len(AllKPIs)
}

// Selection is an unordered set of KPIs.
type Selection struct {
	set map[KPI]struct{}
}

// NewSelection builds a Selection; duplicates collapse and unknown
// identifiers are ignored.
func NewSelection(kpis ...KPI) Selection {
	s := Selection{set: make(map[KPI]struct{}, len(kpis))}
	for _, k := range kpis {
		if k.Valid() {
			s.set[k] = struct{}{}
		}
	}
	return s
}

// ParseSelection accepts indicator names case-insensitively ("rsi",
// "ema_30", "EMA30") and returns the names it could not recognise.
func ParseSelection(names []string) (Selection, []string) {
	var kpis []KPI
	var unknown []string
	for _, n := range names {
		k, ok := ParseKPI(n)
		if !ok {
			if strings.TrimSpace(n) != "" {
				unknown = append(unknown, n)
			}
			continue
		}
		kpis = append(kpis, k)
	}
	return NewSelection(kpis...), unknown
}

// ParseKPI resolves a single indicator name.
func ParseKPI(name string) (KPI, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if strings.HasPrefix(n, "EMA") && !strings.HasPrefix(n, "EMA_") {
		n = "EMA_" + strings.TrimPrefix(n, "EMA")
	}
	k := KPI(n)
	return k, k.Valid()
}

// Has reports whether k is selected.
func (s Selection) Has(k KPI) bool {
	_, ok := s.set[k]
	return ok
}

// Len returns the number of selected indicators.
func (s Selection) Len() int { return len(s.set) }

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s.set) == 0 }

// Members returns the selected KPIs in canonical order.
func (s Selection) Members() []KPI {
	out := make([]KPI, 0, len(s.set))
	for k := range s.set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// Strings returns the member names in canonical order.
func (s Selection) Strings() []string {
	m := s.Members()
	out := make([]string, len(m))
	for i, k := range m {
		out[i] = string(k)
	}
	return out
}
