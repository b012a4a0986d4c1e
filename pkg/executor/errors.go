package executor

import "fmt"

func errUnregisteredScreen(name string) error {
	return fmt.Errorf("screen %q is not registered", name)
}

func errUnregisteredScenario(name string) error {
	return fmt.Errorf("scenario %q is not registered", name)
}
