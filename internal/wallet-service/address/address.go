package address

import "regexp"

// Validator decide se um endereço de carteira é aceito
type Validator interface {
	Valid(address string) bool
}

var evmAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// EVM aceita endereços hex de 20 bytes com prefixo 0x (sem checar checksum EIP-55)
type EVM struct{}

func (EVM) Valid(address string) bool {
	return evmAddress.MatchString(address)
}
