package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignIsDeterministicAndBoundToInputs(t *testing.T) {
	sig := Sign("key", "order_1", "pay_1")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Sign("key", "order_1", "pay_1"))
	assert.NotEqual(t, sig, Sign("key", "order_1", "pay_2"))
	assert.NotEqual(t, sig, Sign("other", "order_1", "pay_1"))
}

func TestVerifySignature(t *testing.T) {
	good := Proof{IntentID: "order_1", PaymentID: "pay_1", Signature: Sign("s", "order_1", "pay_1")}
	assert.True(t, VerifySignature("s", good))

	cases := map[string]Proof{
		"wrong secret":    {IntentID: "order_1", PaymentID: "pay_1", Signature: Sign("t", "order_1", "pay_1")},
		"swapped fields":  {IntentID: "pay_1", PaymentID: "order_1", Signature: good.Signature},
		"empty sig":       {IntentID: "order_1", PaymentID: "pay_1"},
		"empty intent":    {PaymentID: "pay_1", Signature: good.Signature},
		"upper-case hex":  {IntentID: "order_1", PaymentID: "pay_1", Signature: strings.ToUpper(good.Signature)},
		"intent changed":  {IntentID: "order_2", PaymentID: "pay_1", Signature: good.Signature},
		"payment changed": {IntentID: "order_1", PaymentID: "pay_2", Signature: good.Signature},
	}
	for name, p := range cases {
		assert.False(t, VerifySignature("s", p), name)
	}
}

func TestVerifySignatureRejectsSingleCharacterMutations(t *testing.T) {
	const intent, pay = "order_Kx81", "pay_Qz27"
	sig := Sign("s", intent, pay)
	mutate := func(s string, i int) string {
		b := []byte(s)
		b[i] ^= 0x01
		return string(b)
	}
	for i := range intent {
		assert.False(t, VerifySignature("s", Proof{IntentID: mutate(intent, i), PaymentID: pay, Signature: sig}), "intent byte %d", i)
	}
	for i := range pay {
		assert.False(t, VerifySignature("s", Proof{IntentID: intent, PaymentID: mutate(pay, i), Signature: sig}), "payment byte %d", i)
	}
	for i := range sig {
		assert.False(t, VerifySignature("s", Proof{IntentID: intent, PaymentID: pay, Signature: mutate(sig, i)}), "signature byte %d", i)
	}
}
