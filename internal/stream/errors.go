package stream

import "errors"

// ErrConnectionUnavailable indicates no remote channel could be resolved or
// established for a session. Nothing was started; subscribers see no error
// event for this case.
var ErrConnectionUnavailable = errors.New("stream: connection unavailable")
