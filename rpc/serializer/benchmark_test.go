package serializer

import (
	"github.com/ValentinKolb/xtrl/rpc/common"
	"testing"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"VoidRequest": {
			Kind:     common.MsgKRequest,
			Opcode:   uint8(common.OpMapWindow),
			Sequence: 1000,
			Body:     common.EncodeWindow(0x00200001),
		},
		"ConfigureRequest": {
			Kind:     common.MsgKRequest,
			Opcode:   uint8(common.OpConfigureWindow),
			Sequence: 1001,
			Body: common.ConfigureWindowBody{
				Window: 0x00200001,
				Mask:   common.ConfigX | common.ConfigY | common.ConfigWidth | common.ConfigHeight,
				Values: []uint32{10, 20, 800, 600},
			}.Encode(),
		},
		"Error": {
			Kind:     common.MsgKError,
			Opcode:   uint8(common.OpConfigureWindow),
			Sequence: 1001,
			Resource: 0x00200001,
			Code:     uint8(common.ErrWindow),
		},
		"LargeReply": {
			Kind:     common.MsgKReply,
			Sequence: 1002,
			Body:     make([]byte, 4096),
		},
	}
}

// BenchmarkSerialize measures serialization per serializer and message
func BenchmarkSerialize(b *testing.B) {
	for sName, factory := range testSerializers {
		s := factory()
		for mName, msg := range benchmarkMessages() {
			b.Run(sName+"/"+mName, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := s.Serialize(msg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize measures deserialization per serializer and message
func BenchmarkDeserialize(b *testing.B) {
	for sName, factory := range testSerializers {
		s := factory()
		for mName, msg := range benchmarkMessages() {
			data, err := s.Serialize(msg)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(sName+"/"+mName, func(b *testing.B) {
				b.ReportAllocs()
				var result common.Message
				for i := 0; i < b.N; i++ {
					if err := s.Deserialize(data, &result); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
