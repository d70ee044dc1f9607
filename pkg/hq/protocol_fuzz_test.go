package hq

import "testing"

func FuzzValidateOpEnvelope(f *testing.F) {
	f.Add("id", "op", int64(1), "from", "{}")
	f.Add("", "", int64(0), "", "")

	f.Fuzz(func(t *testing.T, id string, op string, ts int64, from string, params string) {
		env := OpEnvelope{
			ID:     id,
			Op:     op,
			TS:     ts,
			From:   from,
			Params: []byte(params),
		}
		_ = ValidateOpEnvelope(env)
	})
}
