package statemachine

import (
	"errors"
	"fmt"
)

// ErrInvalidMove is returned for equipment moves the workshop rules forbid.
var ErrInvalidMove = errors.New("invalid equipment move")

// Destination is where a piece of equipment is being moved to.
type Destination string

const (
	DestinationBus       Destination = "autobus"
	DestinationWarehouse Destination = "almacen"
	DestinationSupplier  Destination = "proveedor"
)

func (d Destination) Valid() bool {
	switch d {
	case DestinationBus, DestinationWarehouse, DestinationSupplier:
		return true
	}
	return false
}

// MoveError explains why an item in State cannot go to Destination.
type MoveError struct {
	State       InventoryState
	Destination Destination
	Reason      string
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("cannot move %s item to %s: %s", e.State, e.Destination, e.Reason)
}

func (e *MoveError) Is(target error) bool { return target == ErrInvalidMove }

// ResolveMove returns the state an item in from ends up in after being moved
// to dest. Moves not covered by a specific rule keep the current state.
func ResolveMove(from InventoryState, dest Destination) (InventoryState, error) {
	if !dest.Valid() {
		return from, &MoveError{State: from, Destination: dest, Reason: "unknown destination"}
	}
	switch from {
	case InventoryBaja:
		return from, &MoveError{State: from, Destination: dest, Reason: "retired equipment cannot move"}
	case InventoryReparacion:
		switch dest {
		case DestinationBus:
			return from, &MoveError{State: from, Destination: dest, Reason: "equipment under repair must go through the warehouse first"}
		case DestinationWarehouse:
			return InventoryAlmacen, nil
		}
	case InventoryAlmacen:
		switch dest {
		case DestinationBus:
			return InventoryInstalado, nil
		case DestinationSupplier:
			return InventoryReparacion, nil
		}
	case InventoryInstalado:
		switch dest {
		case DestinationWarehouse:
			return InventoryAlmacen, nil
		case DestinationSupplier:
			return InventoryReparacion, nil
		}
	}
	return from, nil
}
