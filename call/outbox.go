package call

// outbox collects side effects decided under a call lock. They run in order
// after the lock is released so the platform may re-enter the manager.
type outbox []func()

func (o *outbox) add(f func()) { *o = append(*o, f) }

func (o outbox) flush() {
	for _, f := range o {
		f()
	}
}
