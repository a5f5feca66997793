package schema

import "strings"

type LoginInput struct {
	Email     string `json:"email"`
	Address   string `json:"address" validate:"required,eth_addr"`
	Message   string `json:"message" validate:"required"`
	Signature string `json:"signature" validate:"required,hexsig"`
}

// NormalizedAddress is the lowercase form used as the user's identity.
func (in *LoginInput) NormalizedAddress() string {
	return strings.ToLower(in.Address)
}

func ParseLoginInput(body []byte) (*LoginInput, error) {
	var input LoginInput
	if err := decode(body, &input); err != nil {
		return nil, err
	}
	if err := Struct(&input); err != nil {
		return nil, err
	}
	return &input, nil
}
