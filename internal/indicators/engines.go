package indicators

import "github.com/mphinancial/terminal/internal/config"

// All constructs every engine with its configured thresholds, in the order
// results are reported.
func All(cfg config.IndicatorsConfig) []Engine {
	return []Engine{
		NewPowerGauge(cfg.PowerGauge),
		NewStageClassifier(cfg.Stage),
		NewCANSLIM(cfg.CANSLIM),
		NewOptionsFlow(cfg.Options),
		NewCongressSignal(cfg.Congress),
	}
}
