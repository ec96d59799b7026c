package models

// Wire protocol vocabulary. Messages are newline-terminated UTF-8 lines,
// either a bare keyword or "KEYWORD ARG" with a single space-free argument.

// Server sends Client welcome packet. The client replies with one of
// ClientAuth, ClientReconnect or ClientRegister.
const Welcome = "WELCOME"

// Authentication flow.
const (
	// Client informs Server it wants to authenticate (log in)
	ClientAuth = "CLIENT_AUTH"
	// Server asks Client for username
	AuthUsername = "AUTH_USERNAME"
	// Server asks Client for password
	AuthPassword = "AUTH_PASSWORD"
	// Server confirms successful authentication
	AuthSuccess = "AUTH_SUCCESS"
	// Server informs about failed authentication
	AuthFail = "AUTH_FAIL"
	// Server informs that the user is already logged in elsewhere
	AuthAlreadyLoggedIn = "AUTH_ALREADY_LOGGED_IN"
)

// Heartbeat.
const (
	Ping = "PING"
	Pong = "PONG"
)

// Session token / reconnection flow.
const (
	// Server sends the client its session token: "TOKEN mytoken123"
	Token = "TOKEN"
	// Server asks the client for its session token
	RequestToken = "REQUEST_TOKEN"
	// Client informs Server it wants to reconnect
	ClientReconnect = "CLIENT_RECONNECT"
	// Reconnection accepted, argument is the queue position: "RECONNECT_SUCCESS 2"
	ReconnectSuccess = "RECONNECT_SUCCESS"
	// Reconnection refused
	ReconnectFail = "RECONNECT_FAIL"
	// Reconnection refused because the user is already logged in
	ReconnectAlreadyLoggedIn = "RECONNECT_ALREADY_LOGGED_IN"
)

// Registration flow.
const (
	// Client informs Server it wants to register
	ClientRegister = "CLIENT_REGISTER"
	// Server asks Client for username
	RegisterUsername = "REGISTER_USERNAME"
	// Server asks Client for password
	RegisterPassword = "REGISTER_PASSWORD"
	RegisterSuccess  = "REGISTER_SUCCESS"
	RegisterFail     = "REGISTER_FAIL"
)

// In-match and post-match flow.
const (
	// Server requests an answer for the current round; the client replies
	// with free text, matched case-insensitively.
	ProvideAnswer = "PROVIDE_ANSWER"
	// Server asks the client to requeue or quit after a match
	RequeueOrQuit = "REQUEUE_OR_QUIT"
	Requeue       = "REQUEUE"
	Quit          = "QUIT"
)
