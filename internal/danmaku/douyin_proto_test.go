package danmaku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPushFrameRoundTrip(t *testing.T) {
	original := douyinPushFrame{
		payloadType: "msg",
		logID:       12345,
		payload:     []byte{0x01, 0x02, 0x03},
	}

	decoded, err := decodePushFrame(encodePushFrame(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestPushFrameRoundTripWithoutPayload(t *testing.T) {
	original := douyinPushFrame{payloadType: "hb", logID: 1}

	decoded, err := decodePushFrame(encodePushFrame(original))
	require.NoError(t, err)
	assert.Equal(t, original.payloadType, decoded.payloadType)
	assert.Equal(t, original.logID, decoded.logID)
	assert.Empty(t, decoded.payload)
}

func appendNestedVarint(dst []byte, field, value protowire.Number) []byte {
	dst = protowire.AppendTag(dst, field, protowire.VarintType)
	return protowire.AppendVarint(dst, uint64(value))
}

func buildChatUser(nick string, payGrade, fansClub int32) []byte {
	var u []byte
	u = protowire.AppendTag(u, chatUserFieldNickName, protowire.BytesType)
	u = protowire.AppendString(u, nick)

	var payGradeMsg []byte
	payGradeMsg = appendNestedVarint(payGradeMsg, payGradeFieldLevel, protowire.Number(payGrade))
	u = protowire.AppendTag(u, chatUserFieldPayGrade, protowire.BytesType)
	u = protowire.AppendBytes(u, payGradeMsg)

	var fansClubLevelMsg []byte
	fansClubLevelMsg = appendNestedVarint(fansClubLevelMsg, fansClubDataLevel, protowire.Number(fansClub))
	var fansClubMsg []byte
	fansClubMsg = protowire.AppendTag(fansClubMsg, fansClubFieldData, protowire.BytesType)
	fansClubMsg = protowire.AppendBytes(fansClubMsg, fansClubLevelMsg)
	u = protowire.AppendTag(u, chatUserFieldFansClub, protowire.BytesType)
	u = protowire.AppendBytes(u, fansClubMsg)

	return u
}

func buildChatMessage(content string, user []byte) []byte {
	var m []byte
	m = protowire.AppendTag(m, chatMessageFieldUser, protowire.BytesType)
	m = protowire.AppendBytes(m, user)
	m = protowire.AppendTag(m, chatMessageFieldContent, protowire.BytesType)
	m = protowire.AppendString(m, content)
	return m
}

func TestDecodeChatMessageWithNestedUser(t *testing.T) {
	user := buildChatUser("小明", 12, 7)
	wire := buildChatMessage("hello room", user)

	msg, err := decodeChatMessage(wire)
	require.NoError(t, err)
	require.NotNil(t, msg.user)
	assert.Equal(t, "hello room", msg.content)
	assert.Equal(t, "小明", msg.user.nickName)
	assert.Equal(t, int32(12), msg.user.payGradeLevel)
	assert.Equal(t, int32(7), msg.user.fansClubLevel)
}

func TestDecodeChatMessageWithoutUser(t *testing.T) {
	var wire []byte
	wire = protowire.AppendTag(wire, chatMessageFieldContent, protowire.BytesType)
	wire = protowire.AppendString(wire, "anon message")

	msg, err := decodeChatMessage(wire)
	require.NoError(t, err)
	assert.Nil(t, msg.user)
	assert.Equal(t, "anon message", msg.content)
}

func TestDecodeResponseDispatchesMessages(t *testing.T) {
	user := buildChatUser("观众", 0, 0)
	chatPayload := buildChatMessage("弹幕内容", user)

	var message []byte
	message = protowire.AppendTag(message, messageFieldMethod, protowire.BytesType)
	message = protowire.AppendString(message, "WebcastChatMessage")
	message = protowire.AppendTag(message, messageFieldPayload, protowire.BytesType)
	message = protowire.AppendBytes(message, chatPayload)

	var resp []byte
	resp = protowire.AppendTag(resp, responseFieldMessages, protowire.BytesType)
	resp = protowire.AppendBytes(resp, message)
	resp = protowire.AppendTag(resp, responseFieldNeedAck, protowire.VarintType)
	resp = protowire.AppendVarint(resp, 1)
	resp = protowire.AppendTag(resp, responseFieldInternalExt, protowire.BytesType)
	resp = protowire.AppendString(resp, "ext-diagnostic")

	decoded, err := decodeResponse(resp)
	require.NoError(t, err)
	assert.True(t, decoded.needAck)
	assert.Equal(t, "ext-diagnostic", decoded.internalExt)
	require.Len(t, decoded.messagesList, 1)
	assert.Equal(t, "WebcastChatMessage", decoded.messagesList[0].method)

	chatMsg, err := decodeChatMessage(decoded.messagesList[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "弹幕内容", chatMsg.content)
	assert.Equal(t, "观众", chatMsg.user.nickName)
}
