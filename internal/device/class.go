package device

import (
	"fmt"
	"slices"
	"strings"
)

// Class is a device class. Every entity belongs to exactly one.
type Class string

// Class constants.
const (
	ClassSwitchedFans Class = "switched-fans"
	ClassFans         Class = "fans"
	ClassSwitches     Class = "switches"
	ClassLights       Class = "lights"
	ClassShutters     Class = "shutters"
	ClassThermostats  Class = "thermostats"
	ClassGeneric      Class = "generic"
)

// AllClasses returns every class in binding order. A model listed under two
// classes binds to the earlier one.
func AllClasses() []Class {
	return []Class{
		ClassSwitchedFans, ClassFans, ClassSwitches, ClassLights,
		ClassShutters, ClassThermostats, ClassGeneric,
	}
}

// ParseClass converts a class name such as "lights" to a Class.
func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllClasses(), c) {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

// defaultModels returns the hardware model identifiers of each class.
// A fresh map is built on every call so no caller can alter another's view.
func defaultModels() map[Class][]string {
	return map[Class][]string{
		ClassSwitchedFans: {"switched-fan"},
		ClassFans:         {"fan"},
		ClassSwitches:     {"socket", "switched-generic"},
		ClassLights:       {"light", "dimmer"},
		ClassShutters:     {"rolldownshutter", "sunblind", "gate", "venetianblind"},
		ClassThermostats:  {"thermostat"},
		ClassGeneric:      {"generic"},
	}
}

// constructor builds the class-specific entity around a populated base.
type constructor func(b *entityBase) Entity

var constructors = map[Class]constructor{
	ClassSwitchedFans: func(b *entityBase) Entity { return &SwitchedFan{onOffEntity{entityBase: b}} },
	ClassFans:         func(b *entityBase) Entity { return &Fan{entityBase: b} },
	ClassSwitches:     func(b *entityBase) Entity { return &Switch{onOffEntity{entityBase: b}} },
	ClassLights:       func(b *entityBase) Entity { return &Light{entityBase: b} },
	ClassShutters:     func(b *entityBase) Entity { return &Shutter{entityBase: b} },
	ClassThermostats:  func(b *entityBase) Entity { return &Thermostat{entityBase: b} },
	ClassGeneric:      func(b *entityBase) Entity { return &Generic{entityBase: b} },
}

// classSpec is one row of a ClassTable.
type classSpec struct {
	class  Class
	models map[string]struct{}
	build  constructor
}

// ClassTable maps hardware models to classes for one session.
//
// It is built once from configuration and never modified, so the
// switches-as-lights rule of one session cannot leak into another.
type ClassTable struct {
	specs []classSpec
}

// NewClassTable builds the table. With switchesAsLights, the switch models
// are folded into lights and the switches class matches nothing.
func NewClassTable(switchesAsLights bool) *ClassTable {
	models := defaultModels()
	if switchesAsLights {
		models[ClassLights] = append(models[ClassLights], models[ClassSwitches]...)
		models[ClassSwitches] = nil
	}

	t := &ClassTable{}
	for _, c := range AllClasses() {
		set := make(map[string]struct{}, len(models[c]))
		for _, m := range models[c] {
			set[m] = struct{}{}
		}
		t.specs = append(t.specs, classSpec{class: c, models: set, build: constructors[c]})
	}
	return t
}

// Classify returns the first class whose model set contains model.
func (t *ClassTable) Classify(model string) (Class, bool) {
	for _, s := range t.specs {
		if _, ok := s.models[model]; ok {
			return s.class, true
		}
	}
	return "", false
}

// Models returns the sorted model identifiers bound to c.
func (t *ClassTable) Models(c Class) []string {
	for _, s := range t.specs {
		if s.class != c {
			continue
		}
		out := make([]string, 0, len(s.models))
		for m := range s.models {
			out = append(out, m)
		}
		slices.Sort(out)
		return out
	}
	return nil
}

func (t *ClassTable) spec(c Class) (classSpec, bool) {
	for _, s := range t.specs {
		if s.class == c {
			return s, true
		}
	}
	return classSpec{}, false
}
