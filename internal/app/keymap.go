package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeySpace     = " "
	KeyPause     = "p"
	KeyPauseUp   = "P"
	KeyUp        = "up"
	KeyDown      = "down"
)
