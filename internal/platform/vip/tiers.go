package vip

import "github.com/shopspring/decimal"

// Tier é uma linha da tabela VIP.
// MonthlyLimit é aplicado como teto por saque (não como total mensal).
type Tier struct {
	Level           int             `json:"level"`
	Name            string          `json:"name"`
	DepositRequired decimal.Decimal `json:"depositRequired"`
	MonthlyLimit    decimal.Decimal `json:"monthlyLimit"`
	RetirosCantidad int             `json:"retirosCantidad"`
	InterestRate    decimal.Decimal `json:"interestRate"`  // % diário
	WithdrawalFee   decimal.Decimal `json:"withdrawalFee"` // %
	Benefits        []string        `json:"benefits"`
}

const MaxLevel = 10

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// tiers: limiares estritamente crescentes por nível
var tiers = [MaxLevel + 1]Tier{
	{0, "Inicial", d("0"), d("15"), 1, d("1.50"), d("10"), []string{"Interés diario básico"}},
	{1, "Bronce", d("50"), d("50"), 2, d("1.70"), d("9"), []string{"Interés diario 1.70%", "2 retiros por mes"}},
	{2, "Plata", d("200"), d("100"), 2, d("1.90"), d("8"), []string{"Interés diario 1.90%", "Soporte prioritario"}},
	{3, "Oro", d("500"), d("250"), 3, d("2.10"), d("7"), []string{"Interés diario 2.10%", "3 retiros por mes"}},
	{4, "Platino", d("1000"), d("500"), 3, d("2.30"), d("6"), []string{"Interés diario 2.30%", "Comisión de retiro 6%"}},
	{5, "Zafiro", d("2500"), d("1000"), 4, d("2.50"), d("5"), []string{"Interés diario 2.50%", "4 retiros por mes"}},
	{6, "Rubí", d("5000"), d("2500"), 4, d("2.80"), d("4"), []string{"Interés diario 2.80%", "Gestor de cuenta"}},
	{7, "Esmeralda", d("10000"), d("5000"), 5, d("3.10"), d("3"), []string{"Interés diario 3.10%", "5 retiros por mes"}},
	{8, "Diamante", d("25000"), d("10000"), 6, d("3.50"), d("2"), []string{"Interés diario 3.50%", "Retiros express"}},
	{9, "Élite", d("50000"), d("25000"), 8, d("4.00"), d("1"), []string{"Interés diario 4.00%", "8 retiros por mes"}},
	{10, "Leyenda", d("100000"), d("50000"), 10, d("5.00"), d("0"), []string{"Interés diario 5.00%", "Retiros sin comisión"}},
}

// referralFees é a curva de taxa do saque de comissões, independente de WithdrawalFee
var referralFees = [MaxLevel + 1]decimal.Decimal{
	d("5"), d("4.5"), d("4"), d("3.5"), d("3"), d("2.5"), d("2"), d("1.5"), d("1"), d("0.5"), d("0"),
}

// Clamp limita o nível a [0, MaxLevel]
func Clamp(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// TierFor retorna a linha do nível informado (com clamp, nunca erro)
func TierFor(level int) Tier {
	return tiers[Clamp(level)]
}

// LevelForDeposits retorna o maior nível cujo DepositRequired <= total
func LevelForDeposits(total decimal.Decimal) int {
	level := 0
	for _, t := range tiers {
		if t.DepositRequired.LessThanOrEqual(total) {
			level = t.Level
		}
	}
	return level
}

// ReferralWithdrawalFee retorna a taxa (%) do saque de comissões para o nível
func ReferralWithdrawalFee(level int) decimal.Decimal {
	return referralFees[Clamp(level)]
}

// All retorna a tabela completa (cópia)
func All() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers[:])
	return out
}
