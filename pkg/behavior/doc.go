// Package behavior provides small generic behavior trees for scripted
// clients such as load-test bots.
//
//	tree := behavior.Sequence[*Bot](
//	    behavior.Action(provisionAccount),
//	    behavior.Action(pickCharacter),
//	    behavior.Retry(behavior.Func[*Bot](connect), 5, newBackoff),
//	)
//	status, err := tree.Run(ctx, bot)
package behavior
