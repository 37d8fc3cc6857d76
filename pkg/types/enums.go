package types

// ============================================================================
//                              ConnectionRole - 连接角色
// ============================================================================

// ConnectionRole 连接角色
//
// 决定多路复用后端由哪一方发起逻辑流。
type ConnectionRole int

const (
	// RoleInitiator 发起方（拨号方）
	RoleInitiator ConnectionRole = iota
	// RoleResponder 响应方（监听方）
	RoleResponder
)

// String 返回角色的字符串表示
func (r ConnectionRole) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              BackendKind - 流后端类型
// ============================================================================

// BackendKind 流后端类型
type BackendKind int

const (
	// BackendRaw 直接使用认证后的双工流
	BackendRaw BackendKind = iota
	// BackendMux 在单条物理连接上通过 yamux 承载逻辑流
	BackendMux
)

// String 返回后端类型的字符串表示
func (b BackendKind) String() string {
	switch b {
	case BackendRaw:
		return "raw"
	case BackendMux:
		return "mux"
	default:
		return "unknown"
	}
}

// ParseBackendKind 从字符串解析后端类型
func ParseBackendKind(s string) (BackendKind, bool) {
	switch s {
	case "raw":
		return BackendRaw, true
	case "mux":
		return BackendMux, true
	default:
		return BackendRaw, false
	}
}

// ============================================================================
//                              ConnState - 连接状态
// ============================================================================

// ConnState 连接状态
//
// Connecting 由外部控制层负责；数据平面只负责 Connected -> Disconnected。
type ConnState int

const (
	// ConnStateConnecting 连接中
	ConnStateConnecting ConnState = iota
	// ConnStateConnected 已连接，读写任务运行中
	ConnStateConnected
	// ConnStateDisconnected 已断开
	ConnStateDisconnected
)

// String 返回连接状态的字符串表示
func (s ConnState) String() string {
	switch s {
	case ConnStateConnecting:
		return "connecting"
	case ConnStateConnected:
		return "connected"
	case ConnStateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
