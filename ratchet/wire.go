package ratchet

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"e2ecore/errs"
	"e2ecore/suite"
)

// wireMessage is the on-the-wire shape of Message: field names are kept
// short since msgpack already pays the map-key tax per field.
type wireMessage struct {
	DH  []byte   `msgpack:"dh"`
	N   uint32   `msgpack:"n"`
	PN  uint32   `msgpack:"pn"`
	IV  []byte   `msgpack:"iv"`
	CT  []byte   `msgpack:"ct"`
	Sid suite.ID `msgpack:"sid"`
}

// Marshal encodes a Message for transport or storage.
func (m Message) Marshal() ([]byte, error) {
	const op = "ratchet.Message.Marshal"
	b, err := msgpack.Marshal(wireMessage{
		DH:  m.DHPublic,
		N:   m.N,
		PN:  m.PN,
		IV:  m.Nonce,
		CT:  m.Ciphertext,
		Sid: m.SuiteID,
	})
	if err != nil {
		return nil, errs.New(errs.Serialization, op, err)
	}
	return b, nil
}

// UnmarshalMessage decodes bytes produced by Message.Marshal.
func UnmarshalMessage(b []byte) (Message, error) {
	const op = "ratchet.UnmarshalMessage"
	var w wireMessage
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return Message{}, errs.New(errs.Serialization, op, err)
	}
	if len(w.DH) == 0 || len(w.IV) == 0 {
		return Message{}, errs.New(errs.Serialization, op, fmt.Errorf("message missing required fields"))
	}
	return Message{
		DHPublic:   suite.PublicKey(w.DH),
		N:          w.N,
		PN:         w.PN,
		Nonce:      w.IV,
		Ciphertext: w.CT,
		SuiteID:    w.Sid,
	}, nil
}
