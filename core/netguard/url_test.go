package netguard

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	cases := []struct {
		raw    string
		policy Policy
		want   error
	}{
		{"https://pay.example.test/checkout?tx=1", Policy{}, nil},
		{"http://pay.example.test/checkout", Policy{}, ErrInsecureScheme},
		{"http://pay.example.test/checkout", Policy{AllowInsecure: true}, nil},
		{"javascript:alert(1)", DevPolicy(), ErrRestrictedTarget},
		{"https://user:pw@pay.example.test/", Policy{}, ErrRestrictedTarget},
		{"https://169.254.169.254/latest", DevPolicy(), ErrRestrictedTarget},
		{"https://10.0.0.1/pay", Policy{}, ErrPrivateNetworkBlocked},
		{"https://10.0.0.1/pay", Policy{AllowPrivate: true}, nil},
		{"https://127.0.0.1:9000/pay", Policy{AllowPrivate: true}, ErrRestrictedTarget},
		{"https://localhost/pay", Policy{}, ErrRestrictedTarget},
		{"http://127.0.0.1:9000/pay", DevPolicy(), nil},
		{"https://[::1]/pay", Policy{}, ErrRestrictedTarget},
		{"", DevPolicy(), ErrRestrictedTarget},
	}
	for _, tc := range cases {
		err := ValidateURL(tc.raw, tc.policy)
		if tc.want == nil && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.raw, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.raw, tc.want, err)
		}
	}
}
