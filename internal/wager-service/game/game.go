package game

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/royalbet-wager-core/internal/shared/config"
	"github.com/radieske/royalbet-wager-core/internal/shared/money"
)

// Tipos de jogo suportados
const (
	Dice = "dice"
	Flip = "flip"
	Slot = "slot"
)

// DrawBound é o limite superior exclusivo do sorteio
const DrawBound = 100

var (
	ErrUnknownGame      = errors.New("unknown game type")
	ErrInvalidSelection = errors.New("invalid selection")
)

var (
	diceEdge = decimal.NewFromInt(98)
	two      = decimal.NewFromInt(2)
	three    = decimal.NewFromInt(3)
)

// Result é a divisão completa de uma aposta resolvida; Payout é zero na derrota
type Result struct {
	Win         bool
	Stake       decimal.Decimal
	Multiplier  decimal.Decimal
	Payout      decimal.Decimal // bruto
	ReferralCut decimal.Decimal
	FeeCut      decimal.Decimal
	HouseCharge decimal.Decimal
	NetWin      decimal.Decimal // creditado ao jogador
}

// HouseNet é o resultado da casa: o valor reservado menos tudo que sai para jogador e comissões.
// Negativo quando a casa paga a vitória.
func (r Result) HouseNet() decimal.Decimal {
	return r.Stake.Add(r.HouseCharge).Sub(r.NetWin).Sub(r.ReferralCut).Sub(r.FeeCut)
}

// Calculator resolve apostas; não tem estado além da configuração
type Calculator struct {
	cfg config.GameConfig
}

func NewCalculator(cfg config.GameConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

func (c *Calculator) Config() config.GameConfig { return c.cfg }

// Validate confere se a seleção pertence ao domínio do jogo
func Validate(gameType string, selection int) error {
	switch gameType {
	case Dice:
		if selection < 2 || selection > 99 {
			return fmt.Errorf("%w: dice selection %d not in [2,99]", ErrInvalidSelection, selection)
		}
	case Flip:
		if selection != 0 && selection != 1 {
			return fmt.Errorf("%w: flip selection %d not in {0,1}", ErrInvalidSelection, selection)
		}
	case Slot:
		if selection < 0 || selection > 2 {
			return fmt.Errorf("%w: slot selection %d not in {0,1,2}", ErrInvalidSelection, selection)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}
	return nil
}

// HouseCharge é cobrada sobre o valor apostado, junto com a reserva
func (c *Calculator) HouseCharge(stake decimal.Decimal) decimal.Decimal {
	return money.Percent(stake, c.cfg.HouseChargePct)
}

func outcome(gameType string, selection, draw int) (bool, decimal.Decimal) {
	switch gameType {
	case Dice:
		return draw < selection, diceEdge.Div(decimal.NewFromInt(int64(selection - 1)))
	case Flip:
		return draw%2 == selection, two
	default:
		return draw%3 == selection, three
	}
}

// grossPayout arredonda uma única vez o valor exato; no dice o multiplicador é dízima
// e só serve para exibição
func grossPayout(gameType string, selection int, stake, mult decimal.Decimal) decimal.Decimal {
	if gameType == Dice {
		return stake.Mul(diceEdge).DivRound(decimal.NewFromInt(int64(selection-1)), money.Places)
	}
	return money.Round(stake.Mul(mult))
}

// Resolve calcula vitória e divisão do prêmio para um sorteio em [0, DrawBound).
// Função pura: mesmas entradas, mesmo resultado.
func (c *Calculator) Resolve(gameType string, selection int, stake decimal.Decimal, draw int, hasReferral bool) (Result, error) {
	if err := Validate(gameType, selection); err != nil {
		return Result{}, err
	}
	if draw < 0 || draw >= DrawBound {
		return Result{}, fmt.Errorf("draw %d out of range", draw)
	}

	win, mult := outcome(gameType, selection, draw)
	res := Result{
		Win:         win,
		Stake:       stake,
		Multiplier:  mult,
		Payout:      decimal.Zero,
		ReferralCut: decimal.Zero,
		FeeCut:      decimal.Zero,
		HouseCharge: c.HouseCharge(stake),
		NetWin:      decimal.Zero,
	}

	if !win {
		if c.cfg.FeeOnLoss {
			res.FeeCut = money.Percent(stake, c.cfg.FeePct)
		}
		return res, nil
	}

	res.Payout = grossPayout(gameType, selection, stake, mult)
	if hasReferral {
		res.ReferralCut = money.Percent(res.Payout, c.cfg.ReferralPct)
	}
	res.FeeCut = money.Percent(res.Payout, c.cfg.FeePct)

	net := res.Payout.Sub(res.FeeCut).Sub(res.ReferralCut).Sub(res.HouseCharge)
	if net.IsNegative() {
		net = decimal.Zero
	}
	res.NetWin = net
	return res, nil
}
