package address

import "testing"

func TestEVM(t *testing.T) {
	cases := map[string]bool{
		"0x52908400098527886E0F7030069857D2E4169EE7": true,
		"0xde709f2102306220921060314715629080e2fb77": true,
		"52908400098527886E0F7030069857D2E4169EE7":   false,
		"0x5290840009852788":                         false,
		"0xZZ908400098527886E0F7030069857D2E4169EE7": false,
		"": false,
	}
	var v EVM
	for addr, want := range cases {
		if got := v.Valid(addr); got != want {
			t.Errorf("Valid(%q) = %v, want %v", addr, got, want)
		}
	}
}
