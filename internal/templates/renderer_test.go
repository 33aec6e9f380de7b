package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererRender(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("greet", "Hola {{.Name}}", map[string]string{"Name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana", out)

	_, err = r.Render("bad", "Hola {{.Missing}}", map[string]string{"Name": "x"})
	assert.Error(t, err)

	_, err = r.Render("empty", "", nil)
	assert.Error(t, err)
}

func TestRendererRecompilesChangedText(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("same", "first {{.}}", "a")
	require.NoError(t, err)
	assert.Equal(t, "first a", out)

	out, err = r.Render("same", "second {{.}}", "b")
	require.NoError(t, err)
	assert.Equal(t, "second b", out)

	out, err = r.Render("same", "second {{.}}", "c")
	require.NoError(t, err)
	assert.Equal(t, "second c", out)
	assert.Len(t, r.cache, 1)
}

func TestConfirmationDetails(t *testing.T) {
	r := NewRenderer()
	details := AppointmentDetails{
		PatientName: "Ana Ruiz",
		Phone:       "555-123-4567",
		Email:       "ana@example.com",
		Date:        "domingo, 18 de octubre de 2026",
		Time:        "10:00",
		ServiceName: "Cardiología",
	}

	out, err := r.ConfirmationDetails(details)
	require.NoError(t, err)
	assert.Contains(t, out, "Paciente: Ana Ruiz")
	assert.Contains(t, out, "Servicio: Cardiología")
	assert.Contains(t, out, "Fecha: domingo, 18 de octubre de 2026")
	assert.NotContains(t, out, "Síntomas")

	details.Symptoms = "dolor de pecho"
	out, err = r.ConfirmationDetails(details)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "Síntomas: dolor de pecho\n"), out)
}

func TestConfirmationEmail(t *testing.T) {
	r := NewRenderer()
	subject, body, err := r.ConfirmationEmail(AppointmentDetails{
		ClinicName:  "Consultorio Médico",
		PatientName: "Ana Ruiz",
		Date:        "domingo, 18 de octubre de 2026",
		Time:        "10:00",
		ServiceName: "Cardiología",
	})
	require.NoError(t, err)
	assert.Equal(t, "Confirmación de cita - Cardiología el domingo, 18 de octubre de 2026", subject)
	assert.Contains(t, body, "Hola Ana Ruiz")
	assert.Contains(t, body, "Consultorio Médico")
}
