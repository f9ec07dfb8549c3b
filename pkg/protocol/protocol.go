package protocol

// Wire-level event names shared between the gateway and its clients. These
// names are part of the client contract and must not change without a
// protocol revision.

// Client -> gateway events
const (
	EventIdentify         = "identify"
	EventGoOffline        = "go-offline"
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventSendMessage      = "send-message"
	EventSendNotification = "send-notification"
	EventBroadcast        = "broadcast"
)

// Gateway -> client events
const (
	EventConnected            = "connected"
	EventIdentifyAck          = "identify-ack"
	EventPresenceSnapshot     = "presence-snapshot"
	EventRoomJoinedAck        = "room-joined-ack"
	EventRoomLeftAck          = "room-left-ack"
	EventPeerJoinedRoom       = "peer-joined-room"
	EventPeerLeftRoom         = "peer-left-room"
	EventMessageReceived      = "message-received"
	EventMessageSentAck       = "message-sent-ack"
	EventNotificationReceived = "notification-received"
	EventNotificationSentAck  = "notification-sent-ack"
	EventBroadcastReceived    = "broadcast-received"
	EventBroadcastSentAck     = "broadcast-sent-ack"
	EventDisconnectRequest    = "disconnect-request"
	EventError                = "error"
)

// Notification target discriminators accepted by send-notification.
const (
	TargetAll  = "all"
	TargetRoom = "room"
	TargetUser = "user"
)

// Kinds applied when a client omits one.
const (
	KindText      = "text"
	KindInfo      = "info"
	KindBroadcast = "broadcast"
)
