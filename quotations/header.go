package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repuestos-backoffice/database"
	"repuestos-backoffice/models"
)

// Header updates never touch line items or the total.

func (s *Service) SetNumber(ctx context.Context, id, number string) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_number", id, func(tx database.Tx) (database.Fields, error) {
		return database.Fields{"number": strings.TrimSpace(number)}, nil
	})
}

func (s *Service) SetPlate(ctx context.Context, id, plate string) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_plate", id, func(tx database.Tx) (database.Fields, error) {
		return database.Fields{"plate": normalizePlate(plate)}, nil
	})
}

func (s *Service) SetNotes(ctx context.Context, id, notes string) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_notes", id, func(tx database.Tx) (database.Fields, error) {
		return database.Fields{"notes": notes}, nil
	})
}

// SetPaymentMethod sets or, with "", clears the payment method.
func (s *Service) SetPaymentMethod(ctx context.Context, id string, method models.PaymentMethod) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_payment_method", id, func(tx database.Tx) (database.Fields, error) {
		if method != "" && !method.Valid() {
			return nil, invalidPayment(method)
		}
		return database.Fields{"paymentMethod": string(method)}, nil
	})
}

// SetClient copies the client's name and DNI onto the quotation. An empty
// clientID clears the client and shows the pending placeholder.
func (s *Service) SetClient(ctx context.Context, id, clientID string) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_client", id, func(tx database.Tx) (database.Fields, error) {
		ref, err := resolveClient(tx, clientID)
		if err != nil {
			return nil, err
		}
		return ref.fields(), nil
	})
}

// SetEmployee copies the employee's name and role onto the quotation. An
// empty employeeID clears them.
func (s *Service) SetEmployee(ctx context.Context, id, employeeID string) (*models.Quotation, error) {
	return s.updateHeader(ctx, "set_employee", id, func(tx database.Tx) (database.Fields, error) {
		ref, err := resolveEmployee(tx, employeeID)
		if err != nil {
			return nil, err
		}
		return ref.fields(), nil
	})
}

func (s *Service) updateHeader(ctx context.Context, op, id string, build func(tx database.Tx) (database.Fields, error)) (*models.Quotation, error) {
	var updated *models.Quotation
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		if _, err := loadOpen(tx, id); err != nil {
			return err
		}
		fields, err := build(tx)
		if err != nil {
			return err
		}
		fields["updatedAt"] = s.now()
		if err := tx.Update(quotationPath(id), fields); err != nil {
			return err
		}
		updated, err = loadQuotation(tx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(op, id, err)
	}
	return updated, nil
}

type clientRef struct {
	ID   string
	Name string
	DNI  string
}

func (r clientRef) fields() database.Fields {
	return database.Fields{"clientId": r.ID, "clientName": r.Name, "clientDni": r.DNI}
}

func resolveClient(tx database.Tx, id string) (clientRef, error) {
	if id == "" {
		return clientRef{Name: models.PendingClientName}, nil
	}
	var c models.Client
	if err := getRef(tx, models.CollClients, id, "el cliente", &c); err != nil {
		return clientRef{}, err
	}
	return clientRef{ID: c.ID, Name: c.FullName(), DNI: c.DNI}, nil
}

type employeeRef struct {
	ID   string
	Name string
	Role string
}

func (r employeeRef) fields() database.Fields {
	return database.Fields{"employeeId": r.ID, "employeeName": r.Name, "employeeRole": r.Role}
}

func resolveEmployee(tx database.Tx, id string) (employeeRef, error) {
	if id == "" {
		return employeeRef{}, nil
	}
	var e models.Employee
	if err := getRef(tx, models.CollEmployees, id, "el empleado", &e); err != nil {
		return employeeRef{}, err
	}
	return employeeRef{ID: e.ID, Name: e.FullName(), Role: e.Role}, nil
}

func getRef(tx database.Tx, coll, id, label string, out any) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s %q no existe", ErrNotFound, label, id)
	}
	snap, err := tx.Get(database.Doc(coll, id))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s %q no existe", ErrNotFound, label, id)
	}
	if err != nil {
		return err
	}
	return snap.Decode(out)
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func invalidPayment(m models.PaymentMethod) error {
	return fmt.Errorf("%w: método de pago %q no reconocido", ErrInvalidInput, m)
}
