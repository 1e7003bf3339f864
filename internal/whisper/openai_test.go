package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIEngineTranscribeReturnsRawText(t *testing.T) {
	t.Parallel()

	var gotModel, gotLanguage, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		gotFile = header.Filename

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Hello there."}`))
	}))
	defer server.Close()

	audioPath := filepath.Join(t.TempDir(), "chunk_0.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("ID3"), 0o644))

	engine, err := NewOpenAIEngine(OpenAIOptions{APIKey: "test-key", BaseURL: server.URL + "/v1", Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "openai/whisper-1", engine.Name())

	text, err := engine.Transcribe(context.Background(), audioPath)
	require.NoError(t, err)
	require.Equal(t, " Hello there.", text)
	require.Equal(t, "whisper-1", gotModel)
	require.Equal(t, "en", gotLanguage)
	require.Equal(t, "chunk_0.mp3", gotFile)
}

func TestOpenAIEngineSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"error":{"message":"Maximum content size limit exceeded","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	audioPath := filepath.Join(t.TempDir(), "big.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("ID3"), 0o644))

	engine, err := NewOpenAIEngine(OpenAIOptions{APIKey: "k", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), audioPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "big.mp3")
}

func TestNewOpenAIEngineRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEngine(OpenAIOptions{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestValidateEngineName(t *testing.T) {
	t.Parallel()

	name, err := ValidateEngineName("")
	require.NoError(t, err)
	require.Equal(t, EngineLocal, name)

	name, err = ValidateEngineName(" OpenAI ")
	require.NoError(t, err)
	require.Equal(t, EngineOpenAI, name)

	_, err = ValidateEngineName("vosk")
	require.Error(t, err)
}
