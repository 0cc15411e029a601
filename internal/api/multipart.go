package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
)

// encodePersonInput renders a PersonInput as multipart/form-data.
func encodePersonInput(in PersonInput) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	str := func(name string, v *string) error {
		if v == nil {
			return nil
		}
		return w.WriteField(name, *v)
	}
	link := func(name string, v *int) error {
		if v == nil {
			return nil
		}
		if *v == 0 {
			return w.WriteField(name, "")
		}
		return w.WriteField(name, strconv.Itoa(*v))
	}

	steps := []func() error{
		func() error { return str("nome", in.Nome) },
		func() error { return str("genero", in.Genero) },
		func() error { return str("data_nascimento", in.DataNascimento) },
		func() error { return str("local_nascimento", in.LocalNascimento) },
		func() error { return str("estado_nascimento", in.EstadoNascimento) },
		func() error { return str("data_falecimento", in.DataFalecimento) },
		func() error {
			if in.DataFalecimentoIncerta == nil {
				return nil
			}
			return w.WriteField("data_falecimento_incerta", strconv.FormatBool(*in.DataFalecimentoIncerta))
		},
		func() error { return str("historia_pessoal", in.HistoriaPessoal) },
		func() error { return str("status_vida", in.StatusVida) },
		func() error { return link("pai", in.Pai) },
		func() error { return link("mae", in.Mae) },
		func() error { return link("conjuge", in.Conjuge) },
		func() error { return attachFile(w, "foto", in.FotoPath) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	return nil
}
