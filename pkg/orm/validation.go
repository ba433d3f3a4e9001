package orm

import (
	"fmt"
	"strings"

	"github.com/nexuscrm/persist/pkg/constants"
	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/fieldtypes"
	"github.com/nexuscrm/persist/pkg/utils"
)

// validate checks the system fields and every resolved property of entity.
// It performs no I/O.
func validate(s *entityShape, entity Entity) error {
	if err := validateSystemFields(s.info.class, entity.base()); err != nil {
		return err
	}

	for _, rp := range s.basic {
		value := entity.Get(rp.name)
		if err := fieldtypes.Conform(rp.descriptor, value); err != nil {
			return invalid(s, rp.name, value, err)
		}
	}

	for _, rp := range s.arrays {
		if err := validateArray(rp.descriptor, entity.Get(rp.name)); err != nil {
			return invalid(s, rp.name, entity.Get(rp.name), err)
		}
	}

	for _, rp := range s.localized {
		if err := validateLocalized(rp.descriptor, entity.Get(rp.name), entity.base().Locales()); err != nil {
			return invalid(s, rp.name, entity.Get(rp.name), err)
		}
	}
	return nil
}

func invalid(s *entityShape, property string, value any, err error) error {
	return &appErrors.ValidationError{
		Field:   s.info.class.Name + "." + property,
		Message: err.Error(),
		Value:   value,
	}
}

func validateSystemFields(class *Class, b *Base) error {
	if b.dbid < 0 {
		return appErrors.NewValidationError(constants.FieldDBID, fmt.Sprintf("identity must be positive, got %d", b.dbid))
	}

	if !b.HasIdentity() && (b.creationDate != "" || b.modificationDate != "" || b.deletedDate != "") {
		return appErrors.NewValidationError(constants.FieldDBID, "timestamps cannot be set without an identity")
	}

	if b.dbuuid != "" {
		if !class.UUIDEnabled {
			return appErrors.NewValidationError(constants.FieldDBUUID, "class does not enable uuids")
		}
		if !utils.IsValidUUID(b.dbuuid) {
			return appErrors.NewValidationError(constants.FieldDBUUID, fmt.Sprintf("invalid uuid %q", b.dbuuid))
		}
	}

	if b.deletedDate != "" && !class.TrashEnabled {
		return appErrors.NewValidationError(constants.FieldDeleted, "class does not enable trash")
	}

	dates := map[string]string{
		constants.FieldCreationDate:     b.creationDate,
		constants.FieldModificationDate: b.modificationDate,
		constants.FieldDeleted:          b.deletedDate,
	}
	for field, ts := range dates {
		if ts == "" {
			continue
		}
		if err := validateTimestamp(ts, class.TimestampPrecision); err != nil {
			return appErrors.NewValidationError(field, err.Error())
		}
	}
	return nil
}

// validateTimestamp requires an ISO-8601 UTC timestamp at exactly precision
// fractional digits
func validateTimestamp(ts string, precision int) error {
	if !strings.HasSuffix(ts, "+00:00") {
		return fmt.Errorf("timestamp %q must be UTC with a +00:00 offset", ts)
	}
	_, digits, err := utils.ParseTimestamp(ts)
	if err != nil {
		return err
	}
	if digits != precision {
		return fmt.Errorf("timestamp %q must have %d fractional digits", ts, precision)
	}
	return nil
}

func validateArray(d fieldtypes.Descriptor, value any) error {
	if value == nil {
		if d.Has(fieldtypes.NotNull) {
			return fmt.Errorf("nil is not allowed")
		}
		return nil
	}
	elems, ok := utils.ToSlice(value)
	if !ok {
		return fmt.Errorf("expected an array, got %T", value)
	}

	scalar := d.Scalar()
	scalar.Flags |= fieldtypes.NotNull
	seen := make(map[string]bool, len(elems))
	for i, e := range elems {
		if e == nil {
			return fmt.Errorf("element %d is nil", i)
		}
		if err := fieldtypes.Conform(scalar, e); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if d.Has(fieldtypes.NoDuplicates) {
			key := fmt.Sprintf("%T:%v", e, e)
			if seen[key] {
				return fmt.Errorf("element %d duplicates %v", i, e)
			}
			seen[key] = true
		}
	}
	return nil
}

func validateLocalized(d fieldtypes.Descriptor, value any, entityLocales []string) error {
	if value == nil {
		if d.Has(fieldtypes.NotNull) {
			return fmt.Errorf("nil is not allowed")
		}
		return nil
	}
	values, err := checkLocalized(value)
	if err != nil {
		return err
	}

	allowed := make(map[string]bool, len(entityLocales))
	for _, l := range entityLocales {
		allowed[l] = true
	}
	scalar := d.Scalar()
	for _, l := range values.SortedLocales() {
		if len(entityLocales) > 0 && !allowed[l] {
			return fmt.Errorf("locale %q is not one of the entity locales %v", l, entityLocales)
		}
		if err := fieldtypes.Conform(scalar, values[l]); err != nil {
			return fmt.Errorf("locale %q: %w", l, err)
		}
	}
	return nil
}
