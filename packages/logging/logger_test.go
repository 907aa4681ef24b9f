package logging

import (
	"bytes"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingLogger(t *testing.T) {
	var l CapturingLogger
	l.Printf("--> %s %s", "GET", "/api/users/2")
	l.Printf("<-- %d", 200)

	out := l.Output()
	require.Len(t, out, 2)
	assert.Equal(t, []string{"--> GET /api/users/2", "<-- 200"}, out.Messages())

	l.Printf("later")
	assert.Len(t, out, 2, "Output returns a snapshot")
}

func TestCapturingLogger_Concurrent(t *testing.T) {
	var l CapturingLogger
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Printf("line %d", i)
		}(i)
	}
	wg.Wait()
	assert.Len(t, l.Output(), 50)
}

func TestCapturedOutput_Dump(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := CapturedOutput{
		{Time: at, Message: "--> POST /api/login"},
		{Time: at, Message: "{\n  \"email\": \"eve.holt@reqres.in\"\n}"},
	}

	var buf bytes.Buffer
	out.Dump(&buf, "    ")

	assert.Equal(t,
		"    [2024-05-01 10:00:00.000] --> POST /api/login\n"+
			"    [2024-05-01 10:00:00.000] {\n"+
			"    [2024-05-01 10:00:00.000]   \"email\": \"eve.holt@reqres.in\"\n"+
			"    [2024-05-01 10:00:00.000] }\n",
		buf.String())
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "> ")
	l.Printf("hello %s", "reqres")

	assert.Regexp(t, regexp.MustCompile(`^> \[\d{4}-\d{2}-\d{2} [\d:.]+\] hello reqres\n$`), buf.String())
}
