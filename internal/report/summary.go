// Package report summarizes batch results as text and as a terminal chart.
package report

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/combatsim/internal/battle"
)

// maxKillChanceRows bounds the cumulative kill chance table.
const maxKillChanceRows = 12

// KillChance is the chance the defender is dead after Volleys volleys.
type KillChance struct {
	Volleys int
	Percent float64
}

// Stats are the location and spread of one histogram.
type Stats struct {
	Mean   float64
	Median int
	P90    int
	Min    int
	Max    int
}

// Summary is the printable digest of a batch.
type Summary struct {
	Name      string
	Defender  string
	Requested int
	Trials    int
	Cancelled bool
	// Exceeded reports that the loadout could not kill the defender.
	Exceeded        bool
	CorruptionKills int
	Volleys         Stats
	TUs             Stats
	KillChances     []KillChance
	EnergyPerVolley int
	HeatPerVolley   int
}

// Summarize digests a batch result.
func Summarize(name, defender string, off *battle.OffensiveState, result battle.BatchResult) Summary {
	s := Summary{
		Name:            name,
		Defender:        defender,
		Requested:       result.Requested,
		Trials:          result.Trials,
		Cancelled:       result.Cancelled,
		Exceeded:        result.ExceededMaxVolleys,
		CorruptionKills: result.CorruptionKills,
		Volleys:         stats(result.KillVolleys),
		TUs:             stats(result.KillTUs),
		KillChances:     killChances(result.KillVolleys),
	}
	if off != nil {
		s.EnergyPerVolley, s.HeatPerVolley = off.VolleyCost()
	}
	return s
}

func stats(h battle.Histogram) Stats {
	buckets := h.Buckets()
	if len(buckets) == 0 {
		return Stats{}
	}
	return Stats{
		Mean:   h.Mean(),
		Median: h.Percentile(0.5),
		P90:    h.Percentile(0.9),
		Min:    buckets[0].Value,
		Max:    buckets[len(buckets)-1].Value,
	}
}

func killChances(h battle.Histogram) []KillChance {
	total := h.Total()
	if total == 0 {
		return nil
	}
	var out []KillChance
	cumulative := 0
	for _, b := range h.Buckets() {
		cumulative += b.Count
		out = append(out, KillChance{Volleys: b.Value, Percent: float64(cumulative) * 100 / float64(total)})
		if len(out) == maxKillChanceRows || cumulative == total {
			break
		}
	}
	return out
}

// WriteText prints s for the given language.
func WriteText(w io.Writer, tag language.Tag, s Summary) error {
	p := message.NewPrinter(tag)
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = p.Fprintf(w, format, args...)
		}
	}

	if s.Name != "" {
		printf("%s\n", s.Name)
	}
	if s.Defender != "" {
		printf("Defender: %s\n", s.Defender)
	}
	printf("Trials: %d of %d\n", s.Trials, s.Requested)
	if s.Exceeded {
		printf("Warning: the defender survived %d volleys; this loadout cannot kill it.\n", battle.MaxVolleys)
	}
	if s.Cancelled {
		printf("Cancelled: showing %d completed trials.\n", s.Trials)
	}
	if s.Trials == 0 {
		return err
	}

	printf("Volleys to kill: mean %.2f, median %d, 90%% %d, range %d-%d\n",
		s.Volleys.Mean, s.Volleys.Median, s.Volleys.P90, s.Volleys.Min, s.Volleys.Max)
	printf("TUs to kill: mean %.1f, median %d, 90%% %d, range %d-%d\n",
		s.TUs.Mean, s.TUs.Median, s.TUs.P90, s.TUs.Min, s.TUs.Max)
	if s.CorruptionKills > 0 {
		printf("Corruption kills: %d\n", s.CorruptionKills)
	}
	if s.EnergyPerVolley != 0 || s.HeatPerVolley != 0 {
		printf("Per volley: %d energy, %d heat\n", s.EnergyPerVolley, s.HeatPerVolley)
	}
	if len(s.KillChances) > 0 {
		printf("Kill chance by volley:\n")
		for _, k := range s.KillChances {
			printf("  %4d  %6.2f%%\n", k.Volleys, k.Percent)
		}
	}
	return err
}

// ParseLanguage parses a BCP 47 tag, falling back to English.
func ParseLanguage(value string) language.Tag {
	tag, err := language.Parse(value)
	if err != nil || value == "" {
		return language.English
	}
	return tag
}
