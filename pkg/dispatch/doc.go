// Package dispatch defines the handler contract for LastChange attribute sets.
//
// An embedding application registers handlers before the callback listener
// starts:
//
//	d.Register(dispatch.HandlerFunc(func(ctx context.Context, attrs lastchange.AttributeSet) error {
//		if state, ok := attrs.Get("TransportState"); ok {
//			fmt.Println("transport state:", state)
//		}
//		return nil
//	}))
//
// The registration list is read-only once sealed, so dispatch needs no locking.
package dispatch
