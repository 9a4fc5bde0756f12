package batch

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadPromptFile(t *testing.T) {
	tests := []struct {
		name        string
		fileContent string
		want        []Prompt
	}{
		{
			name:        "empty file",
			fileContent: "",
			want:        nil,
		},
		{
			name:        "only whitespace",
			fileContent: "   \n\t\r\n   ",
			want:        nil,
		},
		{
			name: "one prompt per line",
			fileContent: `What is a derivative?
Explain the Pythagorean theorem
How does a binary search work?`,
			want: []Prompt{
				{Line: 1, Text: "What is a derivative?"},
				{Line: 2, Text: "Explain the Pythagorean theorem"},
				{Line: 3, Text: "How does a binary search work?"},
			},
		},
		{
			name: "comments and blank lines",
			fileContent: `# calculus
What is a limit?

  # geometry
  Why is the sum of angles in a triangle 180 degrees?  
`,
			want: []Prompt{
				{Line: 2, Text: "What is a limit?"},
				{Line: 5, Text: "Why is the sum of angles in a triangle 180 degrees?"},
			},
		},
		{
			name:        "windows line endings",
			fileContent: "What is pi?\r\nWhat is e?\r\n",
			want: []Prompt{
				{Line: 1, Text: "What is pi?"},
				{Line: 2, Text: "What is e?"},
			},
		},
		{
			name: "continued lines",
			fileContent: `Explain eigenvalues \
  using a 2x2 matrix
What is a vector?
Dangling \`,
			want: []Prompt{
				{Line: 1, Text: "Explain eigenvalues using a 2x2 matrix"},
				{Line: 3, Text: "What is a vector?"},
				{Line: 4, Text: "Dangling"},
			},
		},
		{
			name:        "hash inside prompt is kept",
			fileContent: "Explain C# generics",
			want:        []Prompt{{Line: 1, Text: "Explain C# generics"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prompts.txt")
			if err := os.WriteFile(path, []byte(tt.fileContent), 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			got, err := ReadPromptFile(path)
			if err != nil {
				t.Fatalf("ReadPromptFile() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadPromptFile() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestReadPromptFileMissing(t *testing.T) {
	_, err := ReadPromptFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Error("ReadPromptFile() expected error for missing file")
	}
}
