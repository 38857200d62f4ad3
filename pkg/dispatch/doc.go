// Package dispatch routes decoded messages to handlers.
//
// A Registry is built once at startup from handler declarations and is
// read-only afterwards:
//
//	b := dispatch.NewBuilder[*bot.Context](protocol.Table)
//	dispatch.Handle(b, onLoginResult)   // func(*bot.Context, *protocol.LoginResult) error
//	b.HandleFunc(onPong)                // shape checked by Build
//	reg, err := b.Build()
//
// Build rejects handlers with the wrong shape, message types the table
// cannot decode and duplicate ids with a *RegistrationError.
//
// Dispatch never returns an error. Unknown ids, decode failures and
// handler failures are all reported to the context's HandleError, which
// decides whether the session keeps running.
package dispatch
