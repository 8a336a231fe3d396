package rig

type sessionEventKind uint8

const (
	evUnknown sessionEventKind = iota

	// 送信ループがフレームを書き出す直前に通知する
	evSent
	// リグからACK/ERRORを受信した
	evResponse
)

type sessionEvent struct {
	kind sessionEventKind
	cmds []Command
	resp Response
}
