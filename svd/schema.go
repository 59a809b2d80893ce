package svd

import "fmt"

// The element types mirror the schema with pointer fields so that a missing element can be told apart from an empty one.
type peripheralElement struct {
	Name        *string           `xml:"name"`
	Description *string           `xml:"description"`
	GroupName   *string           `xml:"groupName"`
	BaseAddress *string           `xml:"baseAddress"`
	Interrupt   *interruptElement `xml:"interrupt"`
	Registers   *registersElement `xml:"registers"`
}

type interruptElement struct {
	Name        *string `xml:"name"`
	Description *string `xml:"description"`
	Value       *uint32 `xml:"value"`
}

type registersElement struct {
	Register []registerElement `xml:"register"`
}

type registerElement struct {
	Name        *string        `xml:"name"`
	DisplayName *string        `xml:"displayName"`
	Description *string        `xml:"description"`
	ResetValue  *string        `xml:"resetValue"`
	Fields      *fieldsElement `xml:"fields"`
}

type fieldsElement struct {
	Field []fieldElement `xml:"field"`
}

type fieldElement struct {
	Name        *string `xml:"name"`
	Description *string `xml:"description"`
}

// checker keeps the first missing element it is asked about.
type checker struct {
	err error
}

func (c *checker) missing(parent, name string) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: <%s> has no <%s>", ErrMalformed, parent, name)
	}
}

func (c *checker) str(s *string, parent, name string) string {
	if s == nil {
		c.missing(parent, name)
		return ""
	}
	return *s
}

// peripheral converts the decoded elements, every element of the schema is required and lists must not be empty.
func (e *peripheralElement) peripheral() (*Peripheral, error) {
	c := &checker{}
	p := &Peripheral{
		Name:        c.str(e.Name, "peripheral", "name"),
		Description: c.str(e.Description, "peripheral", "description"),
		GroupName:   c.str(e.GroupName, "peripheral", "groupName"),
		BaseAddress: c.str(e.BaseAddress, "peripheral", "baseAddress"),
	}

	if e.Interrupt == nil {
		c.missing("peripheral", "interrupt")
	} else {
		p.Interrupt.Name = c.str(e.Interrupt.Name, "interrupt", "name")
		p.Interrupt.Description = c.str(e.Interrupt.Description, "interrupt", "description")
		if e.Interrupt.Value == nil {
			c.missing("interrupt", "value")
		} else {
			p.Interrupt.Value = *e.Interrupt.Value
		}
	}

	if e.Registers == nil {
		c.missing("peripheral", "registers")
	} else if len(e.Registers.Register) == 0 {
		c.missing("registers", "register")
	} else {
		p.Registers.Register = make([]Register, len(e.Registers.Register))
		for i, re := range e.Registers.Register {
			reg := &p.Registers.Register[i]
			reg.Name = c.str(re.Name, "register", "name")
			reg.DisplayName = c.str(re.DisplayName, "register", "displayName")
			reg.Description = c.str(re.Description, "register", "description")
			reg.ResetValue = c.str(re.ResetValue, "register", "resetValue")
			if re.Fields == nil {
				c.missing("register", "fields")
				continue
			} else if len(re.Fields.Field) == 0 {
				c.missing("fields", "field")
				continue
			}

			reg.Fields.Field = make([]Field, len(re.Fields.Field))
			for j, fe := range re.Fields.Field {
				reg.Fields.Field[j].Name = c.str(fe.Name, "field", "name")
				reg.Fields.Field[j].Description = c.str(fe.Description, "field", "description")
			}
		}
	}

	if c.err != nil {
		return nil, c.err
	}
	return p, nil
}
