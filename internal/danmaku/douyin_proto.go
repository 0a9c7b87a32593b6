package danmaku

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// The douyin_rust reference depends on a prost-generated dy.proto that
// isn't part of this retrieval pack (see DESIGN.md). The field layout below
// reproduces the shape message_handler.rs actually touches (payload_type,
// log_id, payload on PushFrame; messages_list/need_ack/internal_ext on
// Response; method/payload on Message) using protowire directly so no
// codegen step is required. Wire numbers are self-consistent, not
// guaranteed to match Douyin's real schema byte-for-byte.

type douyinPushFrame struct {
	payloadType string
	logID       uint64
	payload     []byte
}

const (
	pushFrameFieldPayloadType protowire.Number = 1
	pushFrameFieldLogID       protowire.Number = 2
	pushFrameFieldPayload     protowire.Number = 3
)

func encodePushFrame(f douyinPushFrame) []byte {
	var b []byte
	b = protowire.AppendTag(b, pushFrameFieldPayloadType, protowire.BytesType)
	b = protowire.AppendString(b, f.payloadType)
	b = protowire.AppendTag(b, pushFrameFieldLogID, protowire.VarintType)
	b = protowire.AppendVarint(b, f.logID)
	if len(f.payload) > 0 {
		b = protowire.AppendTag(b, pushFrameFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.payload)
	}
	return b
}

func decodePushFrame(data []byte) (douyinPushFrame, error) {
	var f douyinPushFrame
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return f, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case pushFrameFieldPayloadType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			f.payloadType = string(v)
			data = data[n:]
		case pushFrameFieldLogID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			f.logID = v
			data = data[n:]
		case pushFrameFieldPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			f.payload = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return f, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return f, nil
}

type douyinMessage struct {
	method  string
	payload []byte
}

const (
	messageFieldMethod  protowire.Number = 1
	messageFieldPayload protowire.Number = 2
)

type douyinResponse struct {
	messagesList []douyinMessage
	needAck      bool
	internalExt  string
}

const (
	responseFieldMessages    protowire.Number = 1
	responseFieldNeedAck     protowire.Number = 2
	responseFieldInternalExt protowire.Number = 3
)

func decodeResponse(data []byte) (douyinResponse, error) {
	var r douyinResponse
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case responseFieldMessages:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			msg, err := decodeDouyinMessage(v)
			if err == nil {
				r.messagesList = append(r.messagesList, msg)
			}
			data = data[n:]
		case responseFieldNeedAck:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.needAck = v != 0
			data = data[n:]
		case responseFieldInternalExt:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.internalExt = string(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return r, nil
}

func decodeDouyinMessage(data []byte) (douyinMessage, error) {
	var m douyinMessage
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case messageFieldMethod:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			m.method = string(v)
			data = data[n:]
		case messageFieldPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			m.payload = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return m, nil
}

// douyinChatUser/douyinChatMessage mirror the slice of ChatMessage the
// parser actually reads: user.nick_name, user.pay_grade.level,
// user.fans_club.data.level, content.
type douyinChatUser struct {
	nickName      string
	payGradeLevel int32
	fansClubLevel int32
}

type douyinChatMessage struct {
	content string
	user    *douyinChatUser
}

const (
	chatMessageFieldUser    protowire.Number = 1
	chatMessageFieldContent protowire.Number = 2

	chatUserFieldNickName protowire.Number = 1
	chatUserFieldPayGrade protowire.Number = 2
	chatUserFieldFansClub protowire.Number = 3

	payGradeFieldLevel protowire.Number = 1

	fansClubFieldData protowire.Number = 1
	fansClubDataLevel protowire.Number = 1
)

func decodeChatMessage(data []byte) (douyinChatMessage, error) {
	var msg douyinChatMessage
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return msg, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case chatMessageFieldContent:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return msg, protowire.ParseError(n)
			}
			msg.content = string(v)
			data = data[n:]
		case chatMessageFieldUser:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return msg, protowire.ParseError(n)
			}
			user, err := decodeChatUser(v)
			if err == nil {
				msg.user = &user
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return msg, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return msg, nil
}

func decodeChatUser(data []byte) (douyinChatUser, error) {
	var u douyinChatUser
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return u, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case chatUserFieldNickName:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.nickName = string(v)
			data = data[n:]
		case chatUserFieldPayGrade:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.payGradeLevel = decodeNestedInt32(v, payGradeFieldLevel)
			data = data[n:]
		case chatUserFieldFansClub:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.fansClubLevel = decodeFansClubLevel(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return u, nil
}

func decodeFansClubLevel(data []byte) int32 {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0
		}
		data = data[n:]
		if num == fansClubFieldData && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return 0
			}
			return decodeNestedInt32(v, fansClubDataLevel)
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return 0
		}
		data = data[n:]
	}
	return 0
}

func decodeNestedInt32(data []byte, field protowire.Number) int32 {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0
		}
		data = data[n:]
		if num == field && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return 0
			}
			return int32(v)
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return 0
		}
		data = data[n:]
	}
	return 0
}
