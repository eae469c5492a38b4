// Package naming gives pipeline components hierarchical names such as
// "Device.Udp.Depacketizer" or "Host.Link[0]".
package naming

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase can be embedded to implement Named.
type NamedBase struct {
	name string
}

// MakeNamedBase validates the name and returns a NamedBase that carries it.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)

	return NamedBase{name: name}
}

// Name returns the name of the object.
func (b NamedBase) Name() string {
	return b.name
}
