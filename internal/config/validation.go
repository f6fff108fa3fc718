package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	return validateAdvisors(c.Advisors)
}

func (t *TradingConfig) validate() error {
	if len(t.NormalizedInstruments()) == 0 {
		return fmt.Errorf("trading.instruments requires at least one symbol")
	}
	if t.IntervalSeconds <= 0 {
		return fmt.Errorf("trading.interval_seconds must be > 0")
	}
	if t.InitialBalanceUSD <= 0 {
		return fmt.Errorf("trading.initial_balance_usd must be > 0")
	}
	if t.FeeRate < 0 || t.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be in [0,1)")
	}
	if t.MaxConcurrent <= 0 {
		return fmt.Errorf("trading.max_concurrent must be > 0")
	}
	if !t.PaperMode {
		return fmt.Errorf("trading.paper_mode must be true: live order routing is not implemented")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxPositionPct <= 0 || r.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in (0,1]")
	}
	if r.MaxExposurePct <= 0 || r.MaxExposurePct > 1 {
		return fmt.Errorf("risk.max_exposure_pct must be in (0,1]")
	}
	if r.MaxExposurePct < r.MaxPositionPct {
		return fmt.Errorf("risk.max_exposure_pct cannot be below risk.max_position_pct")
	}
	if r.MaxLeverage < 1 {
		return fmt.Errorf("risk.max_leverage must be >= 1")
	}
	if r.ConfidenceFloor < 0 || r.ConfidenceFloor > 100 {
		return fmt.Errorf("risk.confidence_floor must be in [0,100]")
	}
	if r.VaRConfidence <= 0 || r.VaRConfidence >= 1 {
		return fmt.Errorf("risk.var_confidence must be in (0,1)")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.SweepSeconds <= 0 {
		return fmt.Errorf("cache.sweep_seconds must be > 0")
	}
	return nil
}

func validateAdvisors(advisors []AdvisorConfig) error {
	enabled := 0
	ids := make(map[string]bool, len(advisors))
	for _, a := range advisors {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("advisors entry missing id")
		}
		if ids[id] {
			return fmt.Errorf("duplicate advisor id: %s", id)
		}
		ids[id] = true
		if !a.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(a.APIURL) == "" {
			return fmt.Errorf("advisors.%s missing api_url", id)
		}
		if strings.TrimSpace(a.Model) == "" {
			return fmt.Errorf("advisors.%s missing model", id)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("advisors requires at least one enabled entry")
	}
	return nil
}
