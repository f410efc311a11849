package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// GameConfig reúne os parâmetros econômicos dos jogos.
// Percentuais são expressos em pontos percentuais (1 = 1%).
type GameConfig struct {
	MinBet         decimal.Decimal
	HouseChargePct decimal.Decimal
	ReferralPct    decimal.Decimal
	FeePct         decimal.Decimal
	FeeOnLoss      bool
	Asset          string // ativo usado nas transferências de comissão
}

// gameFile é o formato do arquivo YAML; valores monetários ficam como string para não passar por float
type gameFile struct {
	MinBet         string `yaml:"min_bet"`
	HouseChargePct string `yaml:"house_charge_pct"`
	ReferralPct    string `yaml:"referral_pct"`
	FeePct         string `yaml:"fee_pct"`
	FeeOnLoss      bool   `yaml:"fee_on_loss"`
	Asset          string `yaml:"asset"`
}

// DefaultGameConfig retorna os valores usados quando não há arquivo de configuração
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MinBet:         decimal.NewFromInt(1),
		HouseChargePct: decimal.Zero,
		ReferralPct:    decimal.NewFromInt(1),
		FeePct:         decimal.NewFromInt(2),
		FeeOnLoss:      false,
		Asset:          "ETH",
	}
}

// LoadGameConfig lê o YAML de economia dos jogos; só um arquivo inexistente cai nos defaults
func LoadGameConfig(path string) (GameConfig, error) {
	cfg, err := NewGameConfigFromYAML(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultGameConfig(), nil
	}
	return cfg, err
}

// NewGameConfigFromYAML faz o parse do arquivo e valida os percentuais
func NewGameConfigFromYAML(path string) (GameConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GameConfig{}, fmt.Errorf("read game config: %w", err)
	}
	return ParseGameConfig(raw)
}

// ParseGameConfig converte o conteúdo YAML em GameConfig, completando campos ausentes com defaults
func ParseGameConfig(raw []byte) (GameConfig, error) {
	var f gameFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return GameConfig{}, fmt.Errorf("decode game config: %w", err)
	}

	cfg := DefaultGameConfig()
	cfg.FeeOnLoss = f.FeeOnLoss
	if f.Asset != "" {
		cfg.Asset = f.Asset
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"min_bet", f.MinBet, &cfg.MinBet},
		{"house_charge_pct", f.HouseChargePct, &cfg.HouseChargePct},
		{"referral_pct", f.ReferralPct, &cfg.ReferralPct},
		{"fee_pct", f.FeePct, &cfg.FeePct},
	}
	for _, fl := range fields {
		if fl.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(fl.raw)
		if err != nil {
			return GameConfig{}, fmt.Errorf("game config %s: %w", fl.name, err)
		}
		if v.IsNegative() {
			return GameConfig{}, fmt.Errorf("game config %s: must not be negative", fl.name)
		}
		*fl.dst = v
	}

	total := cfg.ReferralPct.Add(cfg.FeePct).Add(cfg.HouseChargePct)
	if total.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return GameConfig{}, fmt.Errorf("game config: percentages add up to %s%%", total)
	}
	return cfg, nil
}
